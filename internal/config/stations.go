package config

import (
	"encoding/json"
	"fmt"
	"os"

	"clinic-queue/internal/models"
)

// DefaultStations is the clinic route used when nothing else is configured.
func DefaultStations() []models.Station {
	return []models.Station{
		{ID: 1, DisplayNumber: 1, SequenceOrder: 1, Name: "accounting"},
		{ID: 2, DisplayNumber: 2, SequenceOrder: 2, Name: "lab"},
		{ID: 3, DisplayNumber: 3, SequenceOrder: 3, Name: "blood-draw"},
		{ID: 4, DisplayNumber: 4, SequenceOrder: 4, Name: "doctor"},
		{ID: 5, DisplayNumber: 5, SequenceOrder: 5, Name: "blood-type", Silent: true},
	}
}

// LoadStationsFile reads a JSON array of stations.
func LoadStationsFile(path string) ([]models.Station, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	var stations []models.Station
	if err := json.Unmarshal(raw, &stations); err != nil {
		return nil, fmt.Errorf("parse stations file %s: %w", path, err)
	}
	return stations, nil
}
