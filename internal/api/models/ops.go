package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status  HealthStatus  `json:"status"`
	Time    Timestamp     `json:"time"`
	Cache   *CacheStats   `json:"cache,omitempty"`
	Monitor *MonitorStats `json:"monitor,omitempty"`
}

// CacheStats reports result cache occupancy and effectiveness.
type CacheStats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// MonitorStats reports route monitor sweep counters.
type MonitorStats struct {
	Sweeps      int64      `json:"sweeps"`
	Evaluated   int64      `json:"evaluated"`
	Alerts      int64      `json:"alerts"`
	AllClears   int64      `json:"allClears"`
	Failures    int64      `json:"failures"`
	LastSweepAt *Timestamp `json:"lastSweepAt,omitempty"`
}
