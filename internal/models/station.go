package models

// Station is one processing stage of a visit. Stations are addressed by ID
// or DisplayNumber, never by Name.
type Station struct {
	ID            int64  `json:"id"`
	DisplayNumber int    `json:"display_number"`
	SequenceOrder int    `json:"sequence_order"`
	Name          string `json:"name"`
	Silent        bool   `json:"silent"`
}
