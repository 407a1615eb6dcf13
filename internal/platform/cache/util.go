package cache

import (
	"time"
)

// TimeUntilNext は now から次の hour 時ちょうど（loc のタイムゾーン）までの期間を返します。
// loc が nil の場合は UTC を使用します。
func TimeUntilNext(now time.Time, hour int, loc *time.Location) time.Duration {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)

	// 今日の指定時刻を既に過ぎている場合は翌日を使用
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}

	return next.Sub(now)
}
