package queue

import (
	"fmt"
	"sort"

	"clinic-queue/internal/models"
)

// Route is the validated, ordered list of stations every entry walks through.
type Route struct {
	stations  []models.Station
	byID      map[int64]int
	byDisplay map[int]int
}

// NewRoute sorts stations by sequence order and rejects duplicate ids,
// display numbers or sequence orders.
func NewRoute(stations []models.Station) (*Route, error) {
	if len(stations) == 0 {
		return nil, fmt.Errorf("route: no stations configured")
	}

	sorted := make([]models.Station, len(stations))
	copy(sorted, stations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceOrder < sorted[j].SequenceOrder
	})

	r := &Route{
		stations:  sorted,
		byID:      make(map[int64]int, len(sorted)),
		byDisplay: make(map[int]int, len(sorted)),
	}

	for i, s := range sorted {
		if i > 0 && sorted[i-1].SequenceOrder == s.SequenceOrder {
			return nil, fmt.Errorf("route: stations %d and %d share sequence order %d",
				sorted[i-1].ID, s.ID, s.SequenceOrder)
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("route: duplicate station id %d", s.ID)
		}
		if _, dup := r.byDisplay[s.DisplayNumber]; dup {
			return nil, fmt.Errorf("route: duplicate display number %d", s.DisplayNumber)
		}
		r.byID[s.ID] = i
		r.byDisplay[s.DisplayNumber] = i
	}

	return r, nil
}

func (r *Route) Stations() []models.Station {
	out := make([]models.Station, len(r.stations))
	copy(out, r.stations)
	return out
}

func (r *Route) Station(id int64) (models.Station, bool) {
	i, ok := r.byID[id]
	if !ok {
		return models.Station{}, false
	}
	return r.stations[i], true
}

func (r *Route) ByDisplayNumber(n int) (models.Station, bool) {
	i, ok := r.byDisplay[n]
	if !ok {
		return models.Station{}, false
	}
	return r.stations[i], true
}

func (r *Route) IsFirst(id int64) bool {
	return r.stations[0].ID == id
}

// Next returns the station after id, or false when id is the last one.
func (r *Route) Next(id int64) (models.Station, bool) {
	i, ok := r.byID[id]
	if !ok || i+1 >= len(r.stations) {
		return models.Station{}, false
	}
	return r.stations[i+1], true
}

// Order is the position of a station on the route; -1 for unknown ids and
// for nil (not yet called anywhere).
func (r *Route) Order(id *int64) int {
	if id == nil {
		return -1
	}
	i, ok := r.byID[*id]
	if !ok {
		return -1
	}
	return i
}
