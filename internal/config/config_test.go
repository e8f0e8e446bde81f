package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

const validYAML = `
hierarchy:
  tile_dir: /data/tiles
  levels:
    - level: 0
      tile_size_deg: 4
      road_class_cutoff: primary
    - level: 1
      tile_size_deg: 1
      road_class_cutoff: tertiary_unclassified
    - level: 2
      tile_size_deg: 0.25
      road_class_cutoff: other
tagtransform:
  node_script: /etc/mjolnir/nodes.lua
  node_function: nodes_proc
  way_script: /etc/mjolnir/ways.lua
  way_function: ways_proc
concurrency: 4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mjolnir.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Hierarchy.TileDir != "/data/tiles" {
		t.Errorf("TileDir = %q", cfg.Hierarchy.TileDir)
	}
	if len(cfg.Hierarchy.Levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(cfg.Hierarchy.Levels))
	}
	if cfg.Concurrency != min(4, runtime.NumCPU()) {
		t.Errorf("Concurrency = %d", cfg.Concurrency)
	}
	if cfg.TasksFile != "/data/tiles/tasks.json" {
		t.Errorf("TasksFile default = %q", cfg.TasksFile)
	}
	if cfg.MaxOSMNodeID == 0 {
		t.Error("MaxOSMNodeID default missing")
	}
}

func TestLoadMissingTileDir(t *testing.T) {
	body := `
hierarchy:
  levels:
    - level: 2
      tile_size_deg: 0.25
tagtransform:
  node_script: a.lua
  way_script: b.lua
`
	_, err := Load(writeConfig(t, body))
	if !errors.Is(err, graph.ErrConfigError) {
		t.Errorf("Load = %v, want ErrConfigError", err)
	}
}

func TestLoadMissingScripts(t *testing.T) {
	body := `
hierarchy:
  tile_dir: /data/tiles
  levels:
    - level: 2
      tile_size_deg: 0.25
`
	_, err := Load(writeConfig(t, body))
	if !errors.Is(err, graph.ErrConfigError) {
		t.Errorf("Load = %v, want ErrConfigError", err)
	}
}

func TestLoadBadLevelOrder(t *testing.T) {
	body := `
hierarchy:
  tile_dir: /data/tiles
  levels:
    - level: 0
      tile_size_deg: 0.25
    - level: 1
      tile_size_deg: 4
tagtransform:
  node_script: a.lua
  way_script: b.lua
`
	_, err := Load(writeConfig(t, body))
	if !errors.Is(err, graph.ErrConfigError) {
		t.Errorf("Load = %v, want ErrConfigError", err)
	}
}

func TestBuildHierarchy(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	h := cfg.BuildHierarchy()
	if len(h.Levels) != 3 {
		t.Fatalf("hierarchy levels = %d", len(h.Levels))
	}
	deepest := h.Deepest()
	if deepest.Level != 2 || deepest.Tiles.TileSize() != 0.25 {
		t.Errorf("deepest = level %d size %f", deepest.Level, deepest.Tiles.TileSize())
	}
	if deepest.Importance != graph.RoadClassOther {
		t.Errorf("deepest importance = %v", deepest.Importance)
	}

	path := h.TilePath(graph.NewGraphId(750417, 2, 0))
	want := filepath.Join("/data/tiles", "2", "750417.gph")
	if path != want {
		t.Errorf("TilePath = %q, want %q", path, want)
	}
}

func TestDefaultEntrypoints(t *testing.T) {
	body := `
hierarchy:
  tile_dir: /data/tiles
  levels:
    - level: 2
      tile_size_deg: 0.25
tagtransform:
  node_script: a.lua
  way_script: b.lua
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TagTransform.NodeFunction != "nodes_proc" || cfg.TagTransform.WayFunction != "ways_proc" {
		t.Errorf("default entrypoints = %q, %q",
			cfg.TagTransform.NodeFunction, cfg.TagTransform.WayFunction)
	}
}
