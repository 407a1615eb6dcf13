// Package yahoo fetches daily bars from the Yahoo Finance chart API.
package yahoo

import "time"

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Config holds configuration for the Yahoo Finance client.
type Config struct {
	BaseURL   string        // e.g. "https://query1.finance.yahoo.com"
	UserAgent string        // the API rejects requests without one
	Timeout   time.Duration // HTTP request timeout
}
