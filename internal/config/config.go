package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
	"github.com/mjolnir-routing/mjolnir/internal/idtable"
)

// LevelConfig describes one tile hierarchy level.
type LevelConfig struct {
	Level       uint8   `yaml:"level"`
	TileSizeDeg float64 `yaml:"tile_size_deg"`
	// RoadClassCutoff names the least important road class admitted at
	// this level, e.g. "residential".
	RoadClassCutoff string `yaml:"road_class_cutoff"`
}

// HierarchyConfig locates the tile store and its grid levels.
type HierarchyConfig struct {
	TileDir string        `yaml:"tile_dir"`
	Levels  []LevelConfig `yaml:"levels"`
}

// TagTransformConfig locates the classifier scripts.
type TagTransformConfig struct {
	NodeScript   string `yaml:"node_script"`
	NodeFunction string `yaml:"node_function"`
	WayScript    string `yaml:"way_script"`
	WayFunction  string `yaml:"way_function"`
}

// StatisticsConfig enables the optional statistics outputs.
type StatisticsConfig struct {
	Dir    string `yaml:"dir"`
	DBName string `yaml:"db_name"`
	DSN    string `yaml:"dsn"`
}

// Config is the enumerated configuration tree for the pipeline.
type Config struct {
	Hierarchy    HierarchyConfig    `yaml:"hierarchy"`
	TagTransform TagTransformConfig `yaml:"tagtransform"`

	Concurrency int `yaml:"concurrency"`

	// TransitDir points at imported transit data. The transit importer is
	// an external collaborator; the builder only passes the path through.
	TransitDir string `yaml:"transit_dir"`

	Statistics *StatisticsConfig `yaml:"statistics"`

	// TasksFile is where the validator writes the one-way suspect list.
	TasksFile string `yaml:"tasks_file"`

	// MaxOSMNodeID bounds the node id bitsets.
	MaxOSMNodeID uint64 `yaml:"max_osm_node_id"`

	// Logging and metrics, set from CLI flags rather than the file.
	Verbose         bool          `yaml:"-"`
	LogFile         string        `yaml:"-"`
	MetricsInterval time.Duration `yaml:"-"`
}

var roadClassNames = map[string]graph.RoadClass{
	"motorway":              graph.RoadClassMotorway,
	"trunk":                 graph.RoadClassTrunk,
	"primary":               graph.RoadClassPrimary,
	"tertiary_unclassified": graph.RoadClassTertiaryUnclassified,
	"residential":           graph.RoadClassResidential,
	"service":               graph.RoadClassService,
	"track":                 graph.RoadClassTrack,
	"other":                 graph.RoadClassOther,
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrConfigError, err)
	}

	cfg := &Config{
		Concurrency:  runtime.NumCPU(),
		MaxOSMNodeID: idtable.MaxOSMNodeID,
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", graph.ErrConfigError, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and fills defaults. It is called once at
// startup so a bad tree never reaches the phases.
func (c *Config) Validate() error {
	if c.Hierarchy.TileDir == "" {
		return fmt.Errorf("%w: hierarchy.tile_dir is required", graph.ErrConfigError)
	}
	if len(c.Hierarchy.Levels) == 0 {
		return fmt.Errorf("%w: hierarchy.levels is required", graph.ErrConfigError)
	}
	for i, lvl := range c.Hierarchy.Levels {
		if lvl.TileSizeDeg <= 0 || lvl.TileSizeDeg > 90 {
			return fmt.Errorf("%w: level %d tile_size_deg %f out of range",
				graph.ErrConfigError, lvl.Level, lvl.TileSizeDeg)
		}
		if _, ok := roadClassNames[lvl.RoadClassCutoff]; lvl.RoadClassCutoff != "" && !ok {
			return fmt.Errorf("%w: level %d unknown road class %q",
				graph.ErrConfigError, lvl.Level, lvl.RoadClassCutoff)
		}
		if i > 0 && lvl.TileSizeDeg >= c.Hierarchy.Levels[i-1].TileSizeDeg {
			return fmt.Errorf("%w: levels must go from coarse to detailed",
				graph.ErrConfigError)
		}
	}
	if c.TagTransform.NodeScript == "" || c.TagTransform.WayScript == "" {
		return fmt.Errorf("%w: tagtransform node_script and way_script are required",
			graph.ErrConfigError)
	}
	if c.TagTransform.NodeFunction == "" {
		c.TagTransform.NodeFunction = "nodes_proc"
	}
	if c.TagTransform.WayFunction == "" {
		c.TagTransform.WayFunction = "ways_proc"
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if hw := runtime.NumCPU(); c.Concurrency > hw {
		c.Concurrency = hw
	}
	if c.TasksFile == "" {
		c.TasksFile = filepath.Join(c.Hierarchy.TileDir, "tasks.json")
	}
	if c.MaxOSMNodeID == 0 {
		c.MaxOSMNodeID = idtable.MaxOSMNodeID
	}
	return nil
}

// BuildHierarchy converts the configured levels to the runtime hierarchy.
func (c *Config) BuildHierarchy() *graph.Hierarchy {
	h := &graph.Hierarchy{TileDir: c.Hierarchy.TileDir}
	for _, lvl := range c.Hierarchy.Levels {
		cutoff, ok := roadClassNames[lvl.RoadClassCutoff]
		if !ok {
			cutoff = graph.RoadClassOther
		}
		h.Levels = append(h.Levels, graph.TileLevel{
			Level:      lvl.Level,
			Importance: cutoff,
			Tiles:      graph.NewTiles(lvl.TileSizeDeg),
		})
	}
	return h
}
