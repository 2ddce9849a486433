package analytics

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"influencer-attribution-api/internal/models"
)

// CSVHeader is the column order of the influencer export.
var CSVHeader = []string{"Influencer", "Platform", "Total Registrations", "Latest Registration"}

// WriteCSV writes rows in CSVHeader order. Timestamps are RFC3339 in the
// business timezone.
func WriteCSV(w io.Writer, rows []models.InfluencerAnalyticsRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, row := range rows {
		latest := ""
		if !row.LatestRegistration.IsZero() {
			latest = row.LatestRegistration.In(models.BusinessLocation).Format(time.RFC3339)
		}
		record := []string{
			row.InfluencerName,
			string(row.Platform),
			strconv.Itoa(row.TotalRegistrations),
			latest,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
