package slots

import (
	"sort"

	"influencer-attribution-api/internal/models"
)

type bookingKey struct {
	date string
	id   ID
}

// CountBookings counts confirmed bookings per (date, slot). Events still in
// progress, or lacking a slot id or date, are ignored. Output is sorted by
// date, then Monday-first slot order.
func CountBookings(events []models.RegistrationEvent, r models.DateRange) []models.SlotBookingCount {
	out := []models.SlotBookingCount{}
	if r.IsVacuous() {
		return out
	}

	counts := make(map[bookingKey]int)
	for _, ev := range events {
		if ev.Status == models.StatusInProgress || ev.SlotID == "" || ev.SlotDate == "" {
			continue
		}
		id, err := Parse(ev.SlotID)
		if err != nil {
			continue
		}
		if !r.ContainsDay(ev.SlotDate) {
			continue
		}
		counts[bookingKey{date: ev.SlotDate, id: id}]++
	}

	for k, n := range counts {
		out = append(out, models.SlotBookingCount{Date: k.date, SlotID: string(k.id), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return ID(out[i].SlotID).order() < ID(out[j].SlotID).order()
	})
	return out
}

// Schedule lists, for each day of a bounded range, the slots of that
// weekday with their effective state and booking count.
func Schedule(t Template, o Overrides, bookings []models.SlotBookingCount, r models.DateRange) []models.SlotAvailability {
	out := []models.SlotAvailability{}

	booked := make(map[string]int, len(bookings))
	for _, b := range bookings {
		booked[OverrideKey(b.Date, ID(b.SlotID))] += b.Count
	}

	for _, day := range r.Days() {
		date := day.Format(models.DateLayout)
		for _, id := range ForWeekday(day.Weekday()) {
			enabled, overridden := Effective(t, o, date, id)
			out = append(out, models.SlotAvailability{
				Date:       date,
				SlotID:     string(id),
				Enabled:    enabled,
				Overridden: overridden,
				Booked:     booked[OverrideKey(date, id)],
			})
		}
	}
	return out
}
