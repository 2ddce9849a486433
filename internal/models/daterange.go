package models

import "time"

// DateLayout is the calendar-day format used on the wire and in storage keys.
const DateLayout = "2006-01-02"

// BusinessLocation is the single timezone all day bucketing uses (IST, UTC+05:30).
var BusinessLocation = time.FixedZone("IST", 5*60*60+30*60)

// Day truncates t to midnight of its calendar day in BusinessLocation.
func Day(t time.Time) time.Time {
	local := t.In(BusinessLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, BusinessLocation)
}

// DayString formats t as its BusinessLocation calendar day.
func DayString(t time.Time) string {
	return t.In(BusinessLocation).Format(DateLayout)
}

// DateRange is an inclusive range of calendar days. A nil bound is unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// NewDateRange builds a range from optional day values, normalizing them to
// midnight in BusinessLocation.
func NewDateRange(from, to *time.Time) DateRange {
	var r DateRange
	if from != nil {
		d := Day(*from)
		r.From = &d
	}
	if to != nil {
		d := Day(*to)
		r.To = &d
	}
	return r
}

// IsVacuous reports whether both bounds are set and From is after To.
func (r DateRange) IsVacuous() bool {
	return r.From != nil && r.To != nil && Day(*r.From).After(Day(*r.To))
}

// IsBounded reports whether both ends of the range are set.
func (r DateRange) IsBounded() bool {
	return r.From != nil && r.To != nil
}

// Contains reports whether the calendar day of t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	day := Day(t)
	if r.From != nil && day.Before(Day(*r.From)) {
		return false
	}
	if r.To != nil && day.After(Day(*r.To)) {
		return false
	}
	return true
}

// ContainsDay is Contains for a YYYY-MM-DD string. Unparseable days are outside.
func (r DateRange) ContainsDay(day string) bool {
	t, err := time.ParseInLocation(DateLayout, day, BusinessLocation)
	if err != nil {
		return false
	}
	return r.Contains(t)
}

// Days returns every calendar day of a bounded range in ascending order.
// Unbounded or vacuous ranges yield nil.
func (r DateRange) Days() []time.Time {
	if !r.IsBounded() || r.IsVacuous() {
		return nil
	}
	var days []time.Time
	last := Day(*r.To)
	for d := Day(*r.From); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
