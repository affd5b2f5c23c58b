package models

import "time"

type Waypoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RouteResult is the outcome of a graph-mode query. TotalRisk is the
// length-weighted sum of edge risk along the selected path.
type RouteResult struct {
	ID              string     `json:"id"`
	Origin          Place      `json:"origin"`
	Destination     Place      `json:"destination"`
	Waypoints       []Waypoint `json:"waypoints"`
	TotalRisk       float64    `json:"total_risk"`
	TotalCost       float64    `json:"total_cost"`
	DistanceM       float64    `json:"distance_m"`
	TravelTimeS     float64    `json:"travel_time_s"`
	NodeCount       int        `json:"node_count"`
	ModelUsed       bool       `json:"model_used"`
	SnapshotVersion string     `json:"snapshot_version"`
	ComputedAt      time.Time  `json:"computed_at"`
}

type CandidateRoute struct {
	Label       string       `json:"label"`
	Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
	DurationMin float64      `json:"duration_min"`
	DistanceKm  float64      `json:"distance_km"`
	Risk        float64      `json:"risk"`
	BlendedCost float64      `json:"blended_cost"`
	Best        bool         `json:"best"`
}

type AlternativesResult struct {
	ID              string           `json:"id"`
	Origin          Place            `json:"origin"`
	Destination     Place            `json:"destination"`
	Routes          []CandidateRoute `json:"routes"`
	RiskWeight      float64          `json:"risk_weight"`
	SnapshotVersion string           `json:"snapshot_version"`
}

// RiskAssessment describes the risk at a single point. ModelRisk is nil when
// no model contributed; NearestDegree is nil when there is no risk history.
type RiskAssessment struct {
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	HeuristicRisk float64  `json:"heuristic_risk"`
	NearestDegree *float64 `json:"nearest_distance_deg,omitempty"`
	ModelRisk     *float64 `json:"model_risk,omitempty"`
	ModelError    string   `json:"model_error,omitempty"`
	Risk          float64  `json:"risk"`
}
