package domain

import (
	"fmt"

	"github.com/golang/geo/s2"
)

// Marker is the render-ready view of a ProblemGroup: where to draw it, how to
// color it and what number to show on its badge.
type Marker struct {
	ID         string   `json:"id"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Status     Status   `json:"status"`
	Count      int      `json:"count"`
	Color      string   `json:"color"`
	Icon       string   `json:"icon"`
	ProblemIDs []string `json:"problem_ids"`
}

type markerStyle struct {
	color string
	icon  string
}

var markerStyles = map[Status]markerStyle{
	StatusPending:    {color: "#e53935", icon: "alert-circle"},
	StatusInProgress: {color: "#fb8c00", icon: "progress-wrench"},
	StatusResolved:   {color: "#43a047", icon: "check-circle"},
}

// BuildMarkers converts groups into markers, preserving group order.
func BuildMarkers(groups []ProblemGroup) []Marker {
	markers := make([]Marker, 0, len(groups))
	for _, g := range groups {
		style := markerStyles[g.Status]
		ids := make([]string, len(g.Members))
		for i, m := range g.Members {
			ids[i] = m.ID
		}
		markers = append(markers, Marker{
			ID:         markerID(g),
			Lat:        g.Seed.Lat,
			Lng:        g.Seed.Lng,
			Status:     g.Status,
			Count:      len(g.Members),
			Color:      style.color,
			Icon:       style.icon,
			ProblemIDs: ids,
		})
	}
	return markers
}

// markerID combines the seed's leaf S2 cell, the seed member's problem ID and
// the status. Problem IDs are unique, so IDs stay distinct even when a tiny
// threshold puts two same-status seeds in one leaf cell.
func markerID(g ProblemGroup) string {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(g.Seed.Lat, g.Seed.Lng))
	seedID := ""
	if len(g.Members) > 0 {
		seedID = g.Members[0].ID
	}
	return fmt.Sprintf("%s_%s_%s", cell.ToToken(), seedID, g.Status)
}

// CountByStatus totals grouped members per status. Every canonical status is
// present in the result, zero when absent.
func CountByStatus(groups []ProblemGroup) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, g := range groups {
		counts[g.Status] += len(g.Members)
	}
	return counts
}
