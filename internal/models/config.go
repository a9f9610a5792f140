package models

// OpeningHours - reception window, format "HH:MM:SS" or "HH:MM"
type OpeningHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}
