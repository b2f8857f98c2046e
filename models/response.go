package models

import "time"

// ISOTimestamp formats instants the way the web client expects them
const ISOTimestamp = "2006-01-02T15:04:05.000Z"

// Envelope is the JSON body of every API response
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Count      *int        `json:"count,omitempty"`
	Token      string      `json:"token,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

// Now formats t as an ISO timestamp in UTC
func Now(t time.Time) string {
	return t.UTC().Format(ISOTimestamp)
}

// HealthCheckResponse returns the health check response
type HealthCheckResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
}
