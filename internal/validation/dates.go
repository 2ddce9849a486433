package validation

import (
	"fmt"
	"time"

	"influencer-attribution-api/internal/models"
)

// ParseDate parses a YYYY-MM-DD calendar day in the business timezone.
// Anything else is rejected rather than coerced.
func ParseDate(field, value string) (time.Time, error) {
	value = SanitizeString(value)
	t, err := time.ParseInLocation(models.DateLayout, value, models.BusinessLocation)
	if err != nil {
		return time.Time{}, &RangeError{
			Field:   field,
			Message: "must be an ISO date (YYYY-MM-DD)",
		}
	}
	return t, nil
}

// ParseDateRange parses optional from/to bounds. A from after to is allowed
// and yields a vacuous range. maxDays <= 0 disables the span limit.
func ParseDateRange(from, to string, maxDays int) (models.DateRange, error) {
	var r models.DateRange

	if from != "" {
		t, err := ParseDate("from", from)
		if err != nil {
			return models.DateRange{}, err
		}
		r.From = &t
	}

	if to != "" {
		t, err := ParseDate("to", to)
		if err != nil {
			return models.DateRange{}, err
		}
		r.To = &t
	}

	if maxDays > 0 && r.IsBounded() && !r.IsVacuous() {
		span := int(r.To.Sub(*r.From).Hours()/24) + 1
		if span > maxDays {
			return models.DateRange{}, &RangeError{
				Field:   "to",
				Message: fmt.Sprintf("date range cannot exceed %d days", maxDays),
			}
		}
	}

	return r, nil
}
