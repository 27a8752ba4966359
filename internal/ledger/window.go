package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/halflife/internal/store"
)

// DefaultRadiusHours gives a 35-hour window around the center hour.
const DefaultRadiusHours = 17

// Window returns one point per hour from center-radius to center+radius
// inclusive, always 2*radius+1 long. Hours without a bucket are zero.
func (l *Ledger) Window(ctx context.Context, q *store.Queries, userID string, center time.Time, radiusHours int) ([]Point, error) {
	if radiusHours < 0 {
		return nil, fmt.Errorf("radius must not be negative, got %d", radiusHours)
	}
	mid := l.HourOf(center)
	from := mid.Add(-time.Duration(radiusHours) * time.Hour)
	to := mid.Add(time.Duration(radiusHours) * time.Hour)

	buckets, err := q.ListBuckets(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	byHour := make(map[int64]float64, len(buckets))
	for _, b := range buckets {
		byHour[b.At.UnixMilli()] = clamp(b.ResidualMg)
	}

	points := make([]Point, 0, 2*radiusHours+1)
	for at := from; !at.After(to); at = at.Add(time.Hour) {
		points = append(points, Point{At: at, ResidualMg: byHour[at.UnixMilli()]})
	}
	return points, nil
}
