package services

import (
	"context"
	"fmt"
	"time"

	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/types"
	"gorm.io/gorm"
)

// Growth durations
const (
	DurationDay   = "day"
	DurationWeek  = "week"
	DurationMonth = "month"
	DurationYear  = "year"
)

// Period limits for IncreaseOverTime
const (
	DefaultPeriods = 7
	MaxPeriods     = 366
)

// PeriodCount is the number of documents created in one period.
// Start is inclusive, End exclusive.
type PeriodCount struct {
	Period string    `json:"period"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Count  int64     `json:"count"`
	Total  int64     `json:"total"`
}

// IncreaseOverTime returns exactly limit periods of the given duration,
// oldest first, ending with the period that contains now. Total is the
// number of documents created before the end of each period.
func (s *DocumentService) IncreaseOverTime(ctx context.Context, collection, duration string, limit int) ([]PeriodCount, error) {
	if limit == 0 {
		limit = DefaultPeriods
	}
	if limit < 1 || limit > MaxPeriods {
		return nil, types.BadRequest(fmt.Sprintf("limit must be between 1 and %d", MaxPeriods), "query.invalid")
	}
	if duration == "" {
		duration = DurationDay
	}
	if !validDuration(duration) {
		return nil, types.BadRequest(fmt.Sprintf("duration must be day, week, month or year, got %q", duration), "query.invalid")
	}

	coll, err := s.Collections.Get(ctx, collection)
	if err != nil {
		return nil, err
	}

	periods := buildPeriods(time.Now().UTC(), duration, limit)
	first, last := periods[0].Start, periods[len(periods)-1].End

	db := s.DB.WithContext(ctx).Model(&models.Document{}).Where("collection_id = ?", coll.ID)

	var before int64
	if err := db.Session(&gorm.Session{}).Where("created_at < ?", first).Count(&before).Error; err != nil {
		return nil, fmt.Errorf("count documents before %s: %w", first.Format(time.RFC3339), err)
	}

	var stamps []time.Time
	err = db.Session(&gorm.Session{}).
		Where("created_at >= ? AND created_at < ?", first, last).
		Pluck("created_at", &stamps).Error
	if err != nil {
		return nil, fmt.Errorf("load document timestamps: %w", err)
	}

	for _, ts := range stamps {
		ts = ts.UTC()
		for i := range periods {
			if !ts.Before(periods[i].Start) && ts.Before(periods[i].End) {
				periods[i].Count++
				break
			}
		}
	}

	total := before
	for i := range periods {
		total += periods[i].Count
		periods[i].Total = total
	}
	return periods, nil
}

func validDuration(d string) bool {
	switch d {
	case DurationDay, DurationWeek, DurationMonth, DurationYear:
		return true
	}
	return false
}

// buildPeriods lays out limit consecutive periods ending with the one holding now
func buildPeriods(now time.Time, duration string, limit int) []PeriodCount {
	start := periodStart(now, duration)
	periods := make([]PeriodCount, limit)
	for i := limit - 1; i >= 0; i-- {
		periods[i] = PeriodCount{
			Period: periodLabel(start, duration),
			Start:  start,
			End:    advance(start, duration, 1),
		}
		start = advance(start, duration, -1)
	}
	return periods
}

func periodStart(t time.Time, duration string) time.Time {
	y, m, d := t.Date()
	switch duration {
	case DurationWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		// ISO weeks start on Monday
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case DurationMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case DurationYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

func advance(t time.Time, duration string, n int) time.Time {
	switch duration {
	case DurationWeek:
		return t.AddDate(0, 0, 7*n)
	case DurationMonth:
		return t.AddDate(0, n, 0)
	case DurationYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

func periodLabel(start time.Time, duration string) string {
	switch duration {
	case DurationWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case DurationMonth:
		return start.Format("2006-01")
	case DurationYear:
		return start.Format("2006")
	default:
		return start.Format("2006-01-02")
	}
}
