// Package slots models the weekly onboarding slot template, per-date
// overrides, and booking counts.
package slots

import (
	"fmt"
	"strings"
	"time"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

// ID is a weekly slot key of the form "{DAY}_{TIME}", e.g. "MONDAY_11AM".
type ID string

var days = []struct {
	name    string
	weekday time.Weekday
}{
	{"MONDAY", time.Monday},
	{"TUESDAY", time.Tuesday},
	{"WEDNESDAY", time.Wednesday},
	{"THURSDAY", time.Thursday},
	{"FRIDAY", time.Friday},
	{"SATURDAY", time.Saturday},
	{"SUNDAY", time.Sunday},
}

// Times are the bookable times of day, in order.
var Times = []string{"11AM", "3PM", "7PM"}

// All returns the 21 slot ids, Monday first, times in order.
func All() []ID {
	ids := make([]ID, 0, len(days)*len(Times))
	for _, d := range days {
		for _, tm := range Times {
			ids = append(ids, ID(d.name+"_"+tm))
		}
	}
	return ids
}

// ForWeekday returns the slot ids of one weekday in time order.
func ForWeekday(wd time.Weekday) []ID {
	for _, d := range days {
		if d.weekday == wd {
			ids := make([]ID, 0, len(Times))
			for _, tm := range Times {
				ids = append(ids, ID(d.name+"_"+tm))
			}
			return ids
		}
	}
	return nil
}

// Parse validates and upper-cases a slot id.
func Parse(s string) (ID, error) {
	s = strings.ToUpper(validation.SanitizeString(s))
	day, tm, ok := strings.Cut(s, "_")
	if ok && dayIndex(day) >= 0 && timeIndex(tm) >= 0 {
		return ID(s), nil
	}
	return "", &validation.ValidationError{
		Field:   "slotId",
		Message: "must be {MONDAY..SUNDAY}_{11AM|3PM|7PM}",
	}
}

// Weekday of a well-formed id.
func (id ID) Weekday() time.Weekday {
	day, _, _ := strings.Cut(string(id), "_")
	if i := dayIndex(day); i >= 0 {
		return days[i].weekday
	}
	return -1
}

// order sorts ids Monday-first, then by time of day.
func (id ID) order() int {
	day, tm, _ := strings.Cut(string(id), "_")
	return dayIndex(day)*len(Times) + timeIndex(tm)
}

func dayIndex(name string) int {
	for i, d := range days {
		if d.name == name {
			return i
		}
	}
	return -1
}

func timeIndex(name string) int {
	for i, tm := range Times {
		if tm == name {
			return i
		}
	}
	return -1
}

// OverrideKey is the storage key of a per-date override: "{YYYY-MM-DD}_{SlotId}".
func OverrideKey(date string, id ID) string {
	return date + "_" + string(id)
}

// ValidateSlotDate checks that date is an ISO day falling on the slot's weekday.
// Overrides and bookings are both held to it.
func ValidateSlotDate(date string, id ID) error {
	t, err := validation.ParseDate("date", date)
	if err != nil {
		return err
	}
	if t.Weekday() != id.Weekday() {
		return &validation.ValidationError{
			Field:   "date",
			Message: fmt.Sprintf("%s is a %s, not a %s slot", date, t.Weekday(), id.Weekday()),
		}
	}
	return nil
}

// ResolveEffectiveSlotState applies a per-date override, when present, over
// the recurring weekly default.
func ResolveEffectiveSlotState(recurringEnabled bool, override *bool) bool {
	if override != nil {
		return *override
	}
	return recurringEnabled
}

// Template is the recurring weekly default keyed by slot id. Missing ids
// are disabled.
type Template map[ID]bool

// Overrides maps OverrideKey to the enabled state for that date.
type Overrides map[string]bool

// NewTemplate builds a Template from stored rows, skipping malformed ids.
func NewTemplate(rows []models.RecurringSlot) Template {
	t := make(Template, len(rows))
	for _, row := range rows {
		if id, err := Parse(row.SlotID); err == nil {
			t[id] = row.Enabled
		}
	}
	return t
}

// NewOverrides builds Overrides from stored rows, skipping malformed ids.
func NewOverrides(rows []models.SlotOverride) Overrides {
	o := make(Overrides, len(rows))
	for _, row := range rows {
		if id, err := Parse(row.SlotID); err == nil {
			o[OverrideKey(row.Date, id)] = row.Enabled
		}
	}
	return o
}

// Effective resolves a slot's state on one date.
func Effective(t Template, o Overrides, date string, id ID) (enabled, overridden bool) {
	var override *bool
	if v, ok := o[OverrideKey(date, id)]; ok {
		override = &v
	}
	return ResolveEffectiveSlotState(t[id], override), override != nil
}
