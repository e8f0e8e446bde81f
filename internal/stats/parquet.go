package stats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// statsSchema is one row per (tile, road class).
var statsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "tile_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "road_class", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "road_km", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "oneway_km", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "named_km", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "tagged_speed_km", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "truck_route_km", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "internal_edges", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "area_sqkm", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "density", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
}, nil)

// WriteParquet exports the per-tile aggregates as a Parquet file under
// dir, one row per tile and road class, tiles in id order.
func WriteParquet(s *Stats, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create statistics directory: %w", err)
	}
	path := filepath.Join(dir, "tile_statistics.parquet")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create statistics file: %w", err)
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)
	writer, err := pqarrow.NewFileWriter(statsSchema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return "", fmt.Errorf("failed to create parquet writer: %w", err)
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, statsSchema)
	defer builder.Release()

	tileIDs := make([]uint32, 0, len(s.Tiles))
	for id := range s.Tiles {
		tileIDs = append(tileIDs, id)
	}
	sort.Slice(tileIDs, func(i, j int) bool { return tileIDs[i] < tileIDs[j] })

	for _, tileID := range tileIDs {
		t := s.Tiles[tileID]
		for rc := graph.RoadClassMotorway; rc <= graph.RoadClassOther; rc++ {
			if t.RoadKM[rc] == 0 && t.OneWayKM[rc] == 0 && t.InternalEdges[rc] == 0 {
				continue
			}
			builder.Field(0).(*array.Int64Builder).Append(int64(tileID))
			builder.Field(1).(*array.StringBuilder).Append(rc.String())
			builder.Field(2).(*array.Float64Builder).Append(t.RoadKM[rc])
			builder.Field(3).(*array.Float64Builder).Append(t.OneWayKM[rc])
			builder.Field(4).(*array.Float64Builder).Append(t.NamedKM[rc])
			builder.Field(5).(*array.Float64Builder).Append(t.TaggedSpeedKM[rc])
			builder.Field(6).(*array.Float64Builder).Append(t.TruckRouteKM[rc])
			builder.Field(7).(*array.Int64Builder).Append(int64(t.InternalEdges[rc]))
			builder.Field(8).(*array.Float64Builder).Append(t.AreaSqKM)
			builder.Field(9).(*array.Float64Builder).Append(t.Density)
		}
	}

	record := builder.NewRecord()
	defer record.Release()
	if err := writer.Write(record); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write statistics rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close parquet writer: %w", err)
	}
	// Closing the parquet writer also closes its sink, so the file may
	// already be closed here.
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return "", fmt.Errorf("failed to close statistics file: %w", err)
	}
	return path, nil
}
