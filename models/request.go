package models

import "time"

// Endpoint is either a coordinate pair or a free-text query to geocode.
type Endpoint struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Query     string   `json:"query,omitempty"`
	Region    string   `json:"region,omitempty"`
	Place     string   `json:"place,omitempty"`
}

func (e Endpoint) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

type SafeRouteRequest struct {
	Origin        Endpoint   `json:"origin" binding:"required"`
	Destination   Endpoint   `json:"destination" binding:"required"`
	Weather       string     `json:"weather,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
}

type RiskRequest struct {
	Latitude  *float64   `json:"latitude" binding:"required"`
	Longitude *float64   `json:"longitude" binding:"required"`
	Weather   string     `json:"weather,omitempty"`
	Region    string     `json:"region,omitempty"`
	Place     string     `json:"place,omitempty"`
	At        *time.Time `json:"at,omitempty"`
}
