package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/mjolnir-routing/mjolnir/internal/graph"
)

// WriteDatabase stores the per-country aggregates in a PostgreSQL table so
// coverage dashboards can query them. The table is recreated on every run;
// statistics are a full snapshot, not an increment.
func WriteDatabase(ctx context.Context, dsn, table string, s *Stats) error {
	if table == "" {
		table = "country_statistics"
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to statistics database: %w", err)
	}
	defer conn.Close(ctx)

	ddl := fmt.Sprintf(`
		DROP TABLE IF EXISTS %[1]s;
		CREATE TABLE %[1]s (
			country_iso     TEXT NOT NULL,
			road_class      TEXT NOT NULL,
			road_km         DOUBLE PRECISION NOT NULL,
			oneway_km       DOUBLE PRECISION NOT NULL,
			named_km        DOUBLE PRECISION NOT NULL,
			tagged_speed_km DOUBLE PRECISION NOT NULL,
			truck_route_km  DOUBLE PRECISION NOT NULL,
			internal_edges  BIGINT NOT NULL,
			PRIMARY KEY (country_iso, road_class)
		)`, table)
	if _, err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create statistics table: %w", err)
	}

	isos := make([]string, 0, len(s.Countries))
	for iso := range s.Countries {
		isos = append(isos, iso)
	}
	sort.Strings(isos)

	insert := fmt.Sprintf(
		"INSERT INTO %s VALUES ($1, $2, $3, $4, $5, $6, $7, $8)", table)
	batch := &pgx.Batch{}
	for _, iso := range isos {
		c := s.Countries[iso]
		for rc := graph.RoadClassMotorway; rc <= graph.RoadClassOther; rc++ {
			if c.RoadKM[rc] == 0 && c.OneWayKM[rc] == 0 && c.InternalEdges[rc] == 0 {
				continue
			}
			batch.Queue(insert, iso, rc.String(),
				c.RoadKM[rc], c.OneWayKM[rc], c.NamedKM[rc],
				c.TaggedSpeedKM[rc], c.TruckRouteKM[rc],
				int64(c.InternalEdges[rc]))
		}
	}
	if err := conn.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert statistics rows: %w", err)
	}
	return nil
}
