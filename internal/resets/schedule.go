package resets

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes the next occurrence of a recurring boundary, strictly
// after the given instant. Calling Next with an instant exactly on a
// boundary returns the following one, never the same instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Daily fires every day at hour:00 in loc.
func Daily(hour int, loc *time.Location) (Schedule, error) {
	if err := checkHour(hour); err != nil {
		return nil, err
	}
	return parse(fmt.Sprintf("0 %d * * *", hour), loc)
}

// Weekly fires at hour:00 on the given weekday (Sunday = 0) in loc.
func Weekly(hour int, day time.Weekday, loc *time.Location) (Schedule, error) {
	if err := checkHour(hour); err != nil {
		return nil, err
	}
	if day < time.Sunday || day > time.Saturday {
		return nil, fmt.Errorf("resets: invalid weekday %d", day)
	}
	return parse(fmt.Sprintf("0 %d * * %d", hour, int(day)), loc)
}

// Monthly fires at hour:00 on the first day of each month in loc.
func Monthly(hour int, loc *time.Location) (Schedule, error) {
	if err := checkHour(hour); err != nil {
		return nil, err
	}
	return parse(fmt.Sprintf("0 %d 1 * *", hour), loc)
}

func parse(spec string, loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.Local
	}
	sched, err := parser.Parse(fmt.Sprintf("CRON_TZ=%s %s", loc.String(), spec))
	if err != nil {
		return nil, fmt.Errorf("resets: %w", err)
	}
	return sched, nil
}

func checkHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("resets: invalid hour %d", hour)
	}
	return nil
}

// EveryDays fires at hour:00 every n days, anchored to the previous
// occurrence: once fired at a boundary, the next one lands n days later.
func EveryDays(n, hour int, loc *time.Location) (Schedule, error) {
	if n <= 0 {
		return nil, fmt.Errorf("resets: interval days must be > 0, got %d", n)
	}
	if err := checkHour(hour); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return everyDays{n: n, hour: hour, loc: loc}, nil
}

type everyDays struct {
	n    int
	hour int
	loc  *time.Location
}

func (s everyDays) Next(after time.Time) time.Time {
	t := after.In(s.loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, 0, 0, 0, s.loc)
	if !next.After(after) {
		next = next.AddDate(0, 0, s.n)
	}
	return next
}
