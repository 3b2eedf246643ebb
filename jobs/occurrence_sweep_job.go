package jobs

import (
	"go.uber.org/zap"

	"github.com/nekesa/tutorhub/services"
)

// SweepOccurrenceStatuses settles past-dated occurrences: pending ones are
// cancelled, scheduled ones completed. The read paths run the same sweep
// lazily; the job keeps the calendar current between requests.
func SweepOccurrenceStatuses() {
	zap.S().Info("Running job: SweepOccurrenceStatuses...")

	changed, err := services.Lessons.SweepOccurrenceStatuses()
	if err != nil {
		zap.S().Errorf("Error sweeping occurrence statuses: %v", err)
		return
	}

	if changed > 0 {
		zap.S().Infof("Settled %d past occurrence(s).", changed)
	}
}
