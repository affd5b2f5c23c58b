package models

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address,omitempty"`
}

// Place is a geocoded location together with the administrative names the
// risk model keys on.
type Place struct {
	Location
	Region      string `json:"region,omitempty"`
	Place       string `json:"place,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}
