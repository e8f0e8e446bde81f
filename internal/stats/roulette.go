package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	geojson "github.com/paulmach/go.geojson"

	"github.com/mjolnir-routing/mjolnir/internal/geo"
)

// RouletteData collects the suspect one-way edges found during validation.
// Each entry becomes one review task: the node where the suspicion arose
// plus the way's shape.
type RouletteData struct {
	nodeLocs  map[uint64]geo.PointLL
	wayShapes map[uint64][]geo.PointLL
}

// NewRouletteData creates an empty collection.
func NewRouletteData() RouletteData {
	return RouletteData{
		nodeLocs:  make(map[uint64]geo.PointLL),
		wayShapes: make(map[uint64][]geo.PointLL),
	}
}

// AddTask records a suspect way. Later reports for the same way overwrite
// earlier ones; one task per way is enough for a reviewer.
func (r RouletteData) AddTask(loc geo.PointLL, wayID uint64, shape []geo.PointLL) {
	r.nodeLocs[wayID] = loc
	r.wayShapes[wayID] = shape
}

// Merge folds another collection into this one.
func (r RouletteData) Merge(o RouletteData) {
	for id, loc := range o.nodeLocs {
		r.AddTask(loc, id, o.wayShapes[id])
	}
}

// Len returns the number of suspect ways.
func (r RouletteData) Len() int { return len(r.nodeLocs) }

// task is one entry of the tasks file.
type task struct {
	Geometries  *geojson.FeatureCollection `json:"geometries"`
	Identifier  string                     `json:"identifier"`
	Instruction string                     `json:"instruction"`
}

const taskInstruction = "Check to see if the one way road is logical"

// GenerateTasks writes the suspect list as a JSON array of review tasks.
// Ways are emitted in id order so reruns produce identical files.
func (r RouletteData) GenerateTasks(path string) error {
	ids := make([]uint64, 0, len(r.nodeLocs))
	for id := range r.nodeLocs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tasks := make([]task, 0, len(ids))
	for _, id := range ids {
		loc := r.nodeLocs[id]
		fc := geojson.NewFeatureCollection()
		fc.AddFeature(geojson.NewPointFeature(
			[]float64{float64(loc.Lng), float64(loc.Lat)}))

		coords := make([][]float64, 0, len(r.wayShapes[id]))
		for _, p := range r.wayShapes[id] {
			coords = append(coords, []float64{float64(p.Lng), float64(p.Lat)})
		}
		line := geojson.NewLineStringFeature(coords)
		line.SetProperty("osmid", id)
		fc.AddFeature(line)

		tasks = append(tasks, task{
			Geometries:  fc,
			Identifier:  strconv.FormatUint(id, 10),
			Instruction: taskInstruction,
		})
	}

	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tasks file: %w", err)
	}
	return nil
}
