package lifecycle

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// dayBounds returns [start of day, start of next day) for t in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// sequenceNumber formats the nth case of the day starting at day.
func sequenceNumber(day time.Time, n int64) string {
	return fmt.Sprintf("MA-%s-%03d", day.Format("20060102"), n)
}

// fallbackNumber is used when the daily count is unavailable or collides.
func fallbackNumber(t time.Time, suffix string) string {
	return fmt.Sprintf("MA-%d-%s", t.UnixMilli(), suffix)
}

// randomSuffix returns 9 base36 characters.
func randomSuffix() string {
	b := make([]byte, 9)
	max := big.NewInt(int64(len(base36)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = base36[time.Now().UnixNano()%int64(len(base36))]
			continue
		}
		b[i] = base36[n.Int64()]
	}
	return string(b)
}

// nextCaseNumber counts the cases already created today and numbers the next one.
// A failed count falls back to a timestamped random number.
func (m *Manager) nextCaseNumber(ctx context.Context, now time.Time) string {
	start, end := dayBounds(now, m.loc)
	count, err := m.store.CountCreatedBetween(ctx, start, end)
	if err != nil {
		m.observer.CaseNumberFallback(ctx, err)
		return fallbackNumber(now, m.suffix())
	}
	return sequenceNumber(start, count+1)
}
