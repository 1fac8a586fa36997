package domain

import (
	"math"
	"time"
)

// DateLayout is the calendar date format used for LastCal and DueDate.
const DateLayout = "2006-01-02"

// RemainingUnknown marks a record whose due date cannot be computed. It sorts
// after every real day count so unscheduled assets never read as overdue.
const RemainingUnknown = math.MaxInt32

// Health is the derived schedule state of a record.
type Health string

// Health values derived from remaining days.
const (
	HealthOverdue Health = "Overdue"
	HealthDueSoon Health = "Due Soon"
	HealthHealthy Health = "Healthy"
	HealthUnknown Health = "Unknown"
)

// DueSoonWindow is the number of days before the due date at which a record
// turns from healthy to due soon.
const DueSoonWindow = 30

// Recalculate derives DueDate and Remaining from LastCal, Frequency and now.
// It touches no other field.
func Recalculate(rec MirrorRecord, now time.Time) MirrorRecord {
	due, ok := DueDate(rec.LastCal, rec.Frequency)
	if !ok {
		rec.DueDate = ""
		rec.Remaining = RemainingUnknown
		return rec
	}
	rec.DueDate = due.Format(DateLayout)
	rec.Remaining = DaysBetween(now, due)
	return rec
}

// DueDate returns lastCal plus frequency calendar months.
func DueDate(lastCal string, frequency int) (time.Time, bool) {
	if lastCal == "" || frequency < 1 {
		return time.Time{}, false
	}
	last, err := time.Parse(DateLayout, lastCal)
	if err != nil {
		return time.Time{}, false
	}
	return AddMonths(last, frequency), true
}

// AddMonths adds n calendar months, keeping the day of month where it exists
// and clamping to the last day of the target month otherwise.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	year := y + floorDiv(total, 12)
	month := time.Month(total - floorDiv(total, 12)*12 + 1)
	if last := daysIn(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from the civil date of now to due.
func DaysBetween(now, due time.Time) int {
	ny, nm, nd := now.Date()
	dy, dm, dd := due.Date()
	from := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	to := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

// HealthOf classifies a remaining-days value.
func HealthOf(remaining int) Health {
	switch {
	case remaining == RemainingUnknown:
		return HealthUnknown
	case remaining < 0:
		return HealthOverdue
	case remaining < DueSoonWindow:
		return HealthDueSoon
	default:
		return HealthHealthy
	}
}

// ValidDate reports whether s is empty or a YYYY-MM-DD date.
func ValidDate(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
