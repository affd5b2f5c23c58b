package models

type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type HeatmapResponse struct {
	Zoom  uint32        `json:"zoom"`
	Cells []HeatmapCell `json:"cells"`
	Count int           `json:"count"`
}

type HeatmapCell struct {
	X        uint32  `json:"x"`
	Y        uint32  `json:"y"`
	Count    int     `json:"count"`
	MaxScore float64 `json:"max_score"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	RiskPoints      int    `json:"risk_points"`
	SnapshotVersion string `json:"snapshot_version"`
}
