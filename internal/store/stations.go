package store

import (
	"context"
	"fmt"

	"clinic-queue/internal/models"
)

// Stations reads the station table once at startup.
func (s *MySQL) Stations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_number, sequence_order, name, silent
		FROM stations
		ORDER BY sequence_order ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}
	defer rows.Close()

	var out []models.Station
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.ID, &st.DisplayNumber, &st.SequenceOrder, &st.Name, &st.Silent); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// SeedStations inserts stations when the table is empty.
func (s *MySQL) SeedStations(ctx context.Context, stations []models.Station) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations").Scan(&count); err != nil {
		return fmt.Errorf("count stations: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, st := range stations {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO stations (id, display_number, sequence_order, name, silent) VALUES (?, ?, ?, ?, ?)`,
			st.ID, st.DisplayNumber, st.SequenceOrder, st.Name, st.Silent)
		if err != nil {
			return fmt.Errorf("seed station %d: %w", st.ID, err)
		}
	}
	return nil
}
