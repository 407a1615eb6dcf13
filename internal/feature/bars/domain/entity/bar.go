// Package entity defines the domain models for the bars feature.
package entity

import (
	"time"

	"github.com/guregu/null/v6"
)

// Bar is one canonical daily OHLCV record of a ticker (the persisted unit).
// Date is a calendar date held as midnight UTC; (Ticker, Date) is expected
// to be unique within a stored partition.
type Bar struct {
	Ticker string     // Partition key, upper-case (e.g. "MSFT")
	Date   time.Time  // Trading day at 00:00 UTC
	Open   null.Float // Opening price
	High   null.Float // Highest price of the day
	Low    null.Float // Lowest price of the day
	Close  float64    // Closing price, always present and positive
	Volume null.Int   // Traded volume
}

// AggregatedBar is a Bar together with its trailing simple moving average.
// SMA is null while the partition holds fewer bars than the window size.
// It is derived on read and never persisted.
type AggregatedBar struct {
	Bar
	SMA null.Float
}

// CalendarDate truncates t to its calendar date in t's own location and
// returns it as midnight UTC.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
