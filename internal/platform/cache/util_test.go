package cache

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestTimeUntilNext(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("failed to load America/New_York timezone: %v", err)
	}

	tests := []struct {
		name     string
		now      time.Time
		hour     int
		loc      *time.Location
		expected time.Duration
	}{
		{
			name:     "before the hour today",
			now:      time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC),
			hour:     8,
			loc:      time.UTC,
			expected: 90 * time.Minute,
		},
		{
			name:     "after the hour rolls to tomorrow",
			now:      time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
			hour:     8,
			loc:      time.UTC,
			expected: 23 * time.Hour,
		},
		{
			name:     "exactly on the hour rolls to tomorrow",
			now:      time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
			hour:     8,
			loc:      time.UTC,
			expected: 24 * time.Hour,
		},
		{
			name:     "nil location is UTC",
			now:      time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC),
			hour:     8,
			loc:      nil,
			expected: time.Hour,
		},
		{
			name:     "exchange timezone",
			now:      time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC), // 15:00 EST
			hour:     18,
			loc:      ny,
			expected: 3 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := TimeUntilNext(tt.now, tt.hour, tt.loc)
			if got != tt.expected {
				t.Errorf("TimeUntilNext() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestTimeUntilNext_AlwaysWithinADay(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for hour := 0; hour < 24; hour++ {
		d := TimeUntilNext(now, hour, time.UTC)
		if d <= 0 || d > 24*time.Hour {
			t.Errorf("hour %d: expected duration in (0, 24h], got %v", hour, d)
		}
	}
}
