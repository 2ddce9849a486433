package analytics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"influencer-attribution-api/internal/models"
	"influencer-attribution-api/internal/validation"
)

func at(day string, hour int) time.Time {
	t, err := time.ParseInLocation(models.DateLayout, day, models.BusinessLocation)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func ev(content, day string, hour int, status models.LeadStatus) models.RegistrationEvent {
	return models.RegistrationEvent{
		Attribution: models.AttributionTuple{Content: content, Source: "Instagram"},
		Status:      status,
		CreatedAt:   at(day, hour),
	}
}

func dateRange(t *testing.T, from, to string) models.DateRange {
	t.Helper()
	r, err := validation.ParseDateRange(from, to, 0)
	if err != nil {
		t.Fatalf("ParseDateRange(%q, %q): %v", from, to, err)
	}
	return r
}

func TestAggregate_EndToEnd(t *testing.T) {
	links := []models.ReferralLink{{ID: "1", InfluencerName: "Asha", Platform: models.PlatformInstagram}}
	events := []models.RegistrationEvent{
		ev("asha", "2024-05-01", 10, models.StatusCompleted),
		ev("Asha", "2024-05-02", 10, models.StatusRegistered),
		ev("other", "2024-05-01", 10, models.StatusCompleted),
	}

	rows := Aggregate(events, links, Options{LinkedOnly: true})

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %+v", len(rows), rows)
	}
	row := rows[0]
	if row.InfluencerName != "Asha" || row.TotalRegistrations != 2 || row.Platform != models.PlatformInstagram {
		t.Errorf("unexpected row %+v", row)
	}
	if got := models.DayString(row.LatestRegistration); got != "2024-05-02" {
		t.Errorf("expected latest 2024-05-02, got %s", got)
	}

	all := Aggregate(events, links, Options{})
	if len(all) != 2 {
		t.Fatalf("expected unmatched 'other' row without LinkedOnly, got %+v", all)
	}
	if all[1].InfluencerName != "other" || all[1].Platform != "" {
		t.Errorf("unexpected unmatched row %+v", all[1])
	}
}

func TestAggregate_TotalsEqualAttributedEvents(t *testing.T) {
	events := []models.RegistrationEvent{
		ev("Asha", "2024-05-01", 1, models.StatusCompleted),
		ev("asha ", "2024-05-03", 1, models.StatusInProgress),
		ev("Ravi", "2024-05-02", 1, models.StatusRegistered),
		ev("", "2024-05-02", 1, models.StatusRegistered),
		ev("   ", "2024-05-02", 1, models.StatusRegistered),
		ev("Meera", "2024-04-30", 23, models.StatusCompleted),
		ev("Meera", "2024-04-30", 23, models.StatusCompleted),
	}

	attributed := 0
	for _, e := range events {
		if strings.TrimSpace(e.Attribution.Content) != "" {
			attributed++
		}
	}

	sum := 0
	for _, row := range Aggregate(events, nil, Options{}) {
		sum += row.TotalRegistrations
	}

	if sum != attributed {
		t.Errorf("expected totals to sum to %d, got %d", attributed, sum)
	}
}

func TestAggregate_VacuousRange(t *testing.T) {
	events := []models.RegistrationEvent{ev("Asha", "2024-06-05", 1, models.StatusCompleted)}

	rows := Aggregate(events, nil, Options{Range: dateRange(t, "2024-06-10", "2024-06-01")})
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", rows)
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	rows := Aggregate(nil, nil, Options{})
	if rows == nil || len(rows) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", rows)
	}
}

func TestAggregate_InclusiveRangeInBusinessTimezone(t *testing.T) {
	// 2024-06-01 00:30 IST is still 2024-05-31 in UTC.
	early := time.Date(2024, 5, 31, 19, 0, 0, 0, time.UTC)
	events := []models.RegistrationEvent{
		{Attribution: models.AttributionTuple{Content: "Asha"}, CreatedAt: early},
		ev("Asha", "2024-06-03", 23, models.StatusCompleted),
		ev("Asha", "2024-06-04", 0, models.StatusCompleted),
	}

	rows := Aggregate(events, nil, Options{Range: dateRange(t, "2024-06-01", "2024-06-03")})
	if len(rows) != 1 || rows[0].TotalRegistrations != 2 {
		t.Fatalf("expected 2 registrations in range, got %+v", rows)
	}
}

func TestAggregate_SortAndTieBreak(t *testing.T) {
	events := []models.RegistrationEvent{
		ev("Zoya", "2024-05-01", 1, models.StatusCompleted),
		ev("Zoya", "2024-05-01", 2, models.StatusCompleted),
		ev("bala", "2024-05-05", 1, models.StatusCompleted),
		ev("Arun", "2024-05-02", 1, models.StatusCompleted),
	}

	rows := Aggregate(events, nil, Options{SortBy: SortByRegistrations})
	names := []string{rows[0].InfluencerName, rows[1].InfluencerName, rows[2].InfluencerName}
	want := []string{"Zoya", "Arun", "bala"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("by registrations: expected %v, got %v", want, names)
		}
	}

	rows = Aggregate(events, nil, Options{SortBy: SortByLatest})
	names = []string{rows[0].InfluencerName, rows[1].InfluencerName, rows[2].InfluencerName}
	want = []string{"bala", "Arun", "Zoya"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("by latest: expected %v, got %v", want, names)
		}
	}
}

func TestAggregate_DuplicatesCountedIndividually(t *testing.T) {
	e := ev("Asha", "2024-05-01", 9, models.StatusCompleted)
	rows := Aggregate([]models.RegistrationEvent{e, e, e}, nil, Options{})
	if len(rows) != 1 || rows[0].TotalRegistrations != 3 {
		t.Errorf("expected 3 registrations, got %+v", rows)
	}
}

func TestAggregate_PlatformFromLatestLink(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	links := []models.ReferralLink{
		{ID: "1", InfluencerName: "Asha", Platform: models.PlatformInstagram, CreatedAt: t0},
		{ID: "2", InfluencerName: "asha", Platform: models.PlatformTelegram, CreatedAt: t0.Add(time.Hour)},
	}
	rows := Aggregate([]models.RegistrationEvent{ev("ASHA", "2024-05-01", 1, models.StatusCompleted)}, links, Options{})
	if len(rows) != 1 || rows[0].Platform != models.PlatformTelegram || rows[0].InfluencerName != "asha" {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func TestParseSortBy(t *testing.T) {
	if s, err := ParseSortBy(""); err != nil || s != SortByRegistrations {
		t.Errorf("expected default registrations, got %v %v", s, err)
	}
	if s, err := ParseSortBy("Latest"); err != nil || s != SortByLatest {
		t.Errorf("expected latest, got %v %v", s, err)
	}
	if _, err := ParseSortBy("name"); !validation.IsValidation(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestDailyTrend_Contiguous(t *testing.T) {
	events := []models.RegistrationEvent{
		ev("Asha", "2024-01-01", 10, models.StatusCompleted),
		ev("", "2024-01-01", 11, models.StatusInProgress),
		ev("Ravi", "2024-01-03", 10, models.StatusCompleted),
		ev("Ravi", "2024-01-04", 10, models.StatusCompleted),
	}

	got := DailyTrend(events, TrendOptions{Range: dateRange(t, "2024-01-01", "2024-01-03")})
	want := []models.TrendPoint{
		{Date: "2024-01-01", Count: 2},
		{Date: "2024-01-02", Count: 0},
		{Date: "2024-01-03", Count: 1},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestDailyTrend_ExplicitRangeWithoutEvents(t *testing.T) {
	got := DailyTrend(nil, TrendOptions{Range: dateRange(t, "2024-02-27", "2024-03-01")})
	if len(got) != 4 {
		t.Fatalf("expected 4 zero days across the leap day, got %+v", got)
	}
	if got[2].Date != "2024-02-29" || got[2].Count != 0 {
		t.Errorf("unexpected leap day point %+v", got[2])
	}
}

func TestDailyTrend_OpenBoundsFollowEvents(t *testing.T) {
	events := []models.RegistrationEvent{
		ev("Asha", "2024-03-05", 1, models.StatusCompleted),
		ev("Asha", "2024-03-02", 1, models.StatusCompleted),
	}

	got := DailyTrend(events, TrendOptions{})
	if len(got) != 4 || got[0].Date != "2024-03-02" || got[3].Date != "2024-03-05" {
		t.Fatalf("unexpected trend %+v", got)
	}

	if got := DailyTrend(nil, TrendOptions{}); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil trend, got %#v", got)
	}
}

func TestDailyTrend_VacuousAndInfluencerFilter(t *testing.T) {
	events := []models.RegistrationEvent{
		ev("Asha", "2024-03-01", 1, models.StatusCompleted),
		ev("Ravi", "2024-03-01", 1, models.StatusCompleted),
		ev(" asha", "2024-03-02", 1, models.StatusCompleted),
	}

	if got := DailyTrend(events, TrendOptions{Range: dateRange(t, "2024-03-05", "2024-03-01")}); len(got) != 0 {
		t.Errorf("expected vacuous range to be empty, got %+v", got)
	}

	got := DailyTrend(events, TrendOptions{Influencer: "ASHA"})
	if len(got) != 2 || got[0].Count != 1 || got[1].Count != 1 {
		t.Errorf("unexpected filtered trend %+v", got)
	}
}

func TestBreakdown(t *testing.T) {
	events := []models.RegistrationEvent{
		{Attribution: models.AttributionTuple{Source: "Instagram"}, CreatedAt: at("2024-03-01", 1)},
		{Attribution: models.AttributionTuple{Source: "Instagram"}, CreatedAt: at("2024-03-01", 2)},
		{Attribution: models.AttributionTuple{Source: "YouTube"}, CreatedAt: at("2024-03-01", 3)},
		{Attribution: models.AttributionTuple{}, CreatedAt: at("2024-03-01", 4)},
	}

	got := Breakdown(events, models.DateRange{}, DimensionSource)
	want := []models.BreakdownRow{
		{Value: "Instagram", Count: 2},
		{Value: "YouTube", Count: 1},
		{Value: NoneValue, Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	// "YouTube" and "none" tie at 1; "YouTube" < "none" in byte order.
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	if _, err := ParseDimension("term"); !validation.IsValidation(err) {
		t.Errorf("expected ValidationError for unknown dimension, got %v", err)
	}
}

func TestWriteCSV_ColumnOrder(t *testing.T) {
	rows := []models.InfluencerAnalyticsRow{{
		InfluencerName:     "Asha, Jr.",
		Platform:           models.PlatformInstagram,
		TotalRegistrations: 2,
		LatestRegistration: time.Date(2024, 5, 2, 4, 30, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "Influencer,Platform,Total Registrations,Latest Registration\n" +
		"\"Asha, Jr.\",Instagram,2,2024-05-02T10:00:00+05:30\n"
	if buf.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, buf.String())
	}
}
