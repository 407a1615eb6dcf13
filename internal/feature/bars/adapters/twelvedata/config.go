// Package twelvedata provides a client for the Twelve Data stock market API.
package twelvedata

import "time"

// DefaultBaseURL is the Twelve Data REST host.
const DefaultBaseURL = "https://api.twelvedata.com"

// DefaultRequestsPerMinute is the call limit of the free plan.
const DefaultRequestsPerMinute = 8

// Config holds configuration for the Twelve Data API client.
type Config struct {
	APIKey            string        // API key for authentication
	BaseURL           string        // Base URL for the API (e.g., "https://api.twelvedata.com")
	Timeout           time.Duration // HTTP request timeout
	RequestsPerMinute int           // 0 uses DefaultRequestsPerMinute, negative disables limiting
}
