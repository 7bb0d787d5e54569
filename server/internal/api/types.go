package api

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// StatsResponse is the payload for GET /stats.
type StatsResponse struct {
	OK      bool `json:"ok"`
	Rooms   int  `json:"rooms"`
	Clients int  `json:"clients"`
}

// errorResponse is the JSON body returned for all error responses.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
