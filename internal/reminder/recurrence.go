// Package reminder computes reminder due-ness and recurrence. All functions
// are pure; the scheduler owns the clock.
package reminder

import (
	"time"

	"arbor-server/internal/domain"
)

// NextOccurrence returns the trigger time following last for the given repeat
// options, or nil when the reminder does not repeat (absent options,
// non-positive interval, unknown unit) or the next time would pass EndDate.
//
// Month and year arithmetic uses time.AddDate normalization: Jan 31 plus one
// month lands on Mar 3 (Mar 2 in leap years). That rollover rule is the
// contract for this whole package.
func NextOccurrence(last time.Time, opts *domain.RepeatOptions) *time.Time {
	if opts == nil || opts.Interval <= 0 {
		return nil
	}

	var next time.Time
	switch opts.Unit {
	case domain.RepeatSeconds:
		next = last.Add(time.Duration(opts.Interval) * time.Second)
	case domain.RepeatMinutes:
		next = last.Add(time.Duration(opts.Interval) * time.Minute)
	case domain.RepeatHours:
		next = last.Add(time.Duration(opts.Interval) * time.Hour)
	case domain.RepeatDays:
		next = last.AddDate(0, 0, opts.Interval)
	case domain.RepeatWeeks:
		if len(opts.DaysOfWeek) > 0 {
			next = nextListedWeekday(last, opts.DaysOfWeek, opts.Interval)
		} else {
			next = last.AddDate(0, 0, 7*opts.Interval)
		}
	case domain.RepeatMonths:
		next = last.AddDate(0, opts.Interval, 0)
	case domain.RepeatYears:
		next = last.AddDate(opts.Interval, 0, 0)
	default:
		return nil
	}

	if opts.EndDate != nil && next.After(*opts.EndDate) {
		return nil
	}
	return &next
}

// nextListedWeekday picks the next listed weekday strictly after last's
// weekday within the same week; when none remains, it jumps to the first
// listed weekday of the week interval weeks later. Weekday numbering matches
// time.Weekday (0=Sunday).
func nextListedWeekday(last time.Time, days []int, interval int) time.Time {
	wd := int(last.Weekday())
	nextThisWeek := -1
	first := -1
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		if d > wd && (nextThisWeek == -1 || d < nextThisWeek) {
			nextThisWeek = d
		}
		if first == -1 || d < first {
			first = d
		}
	}
	if nextThisWeek != -1 {
		return last.AddDate(0, 0, nextThisWeek-wd)
	}
	if first == -1 {
		// Only out-of-range entries; fall back to plain weekly stepping.
		return last.AddDate(0, 0, 7*interval)
	}
	return last.AddDate(0, 0, (7-wd+first)+7*(interval-1))
}

// IsDue reports whether r should fire at now. A snooze time, when set,
// replaces the base timestamp for the next firing.
func IsDue(r *domain.Reminder, now time.Time) bool {
	if r == nil || !r.Enabled {
		return false
	}
	if r.SnoozedUntil != nil {
		return !r.SnoozedUntil.After(now)
	}
	return !r.Timestamp.After(now)
}

// Snooze returns a copy of r that fires at now plus the given minutes. The
// base timestamp and repeat options are untouched.
func Snooze(r *domain.Reminder, minutes int, now time.Time) *domain.Reminder {
	next := *r
	until := now.Add(time.Duration(minutes) * time.Minute)
	next.SnoozedUntil = &until
	return &next
}
