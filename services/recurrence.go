package services

import (
	"math/rand"
	"time"

	"github.com/nekesa/tutorhub/models"
)

// backfillCompletedWeight is the share of past-dated backfill occurrences
// marked completed; the rest are marked cancelled.
const backfillCompletedWeight = 0.8

// OccurrencePlan is one calendar occurrence emitted by the recurrence engine
// before it is persisted as a LessonOccurrence.
type OccurrencePlan struct {
	Date   time.Time
	Status models.OccurrenceStatus
}

// FrequencyStep returns the fixed day step for a frequency. Monthly uses a
// fixed 28-day step, not calendar-month arithmetic. Once returns 0.
func FrequencyStep(freq models.Frequency) (int, error) {
	switch freq {
	case models.FrequencyOnce:
		return 0, nil
	case models.FrequencyWeekly:
		return 7, nil
	case models.FrequencyBiweekly:
		return 14, nil
	case models.FrequencyMonthly:
		return 28, nil
	default:
		return 0, ErrInvalidFrequency
	}
}

// ExpandOccurrences turns a lesson definition into its ordered occurrence
// dates, the first equal to startDate and the last on or before termEnd.
// This is the live creation path: every occurrence comes out scheduled.
func ExpandOccurrences(startDate, termEnd time.Time, freq models.Frequency) ([]OccurrencePlan, error) {
	return expand(startDate, termEnd, freq, func(time.Time) models.OccurrenceStatus {
		return models.OccurrenceScheduled
	})
}

// BackfillOccurrences is the seed/demo path: past-dated occurrences get a
// weighted random completed/cancelled status, future-dated ones come out
// scheduled. Deterministic under the supplied rand source.
func BackfillOccurrences(startDate, termEnd time.Time, freq models.Frequency, today time.Time, rng *rand.Rand) ([]OccurrencePlan, error) {
	day := DayOf(today)
	return expand(startDate, termEnd, freq, func(date time.Time) models.OccurrenceStatus {
		if date.Before(day) {
			if rng.Float64() < backfillCompletedWeight {
				return models.OccurrenceCompleted
			}
			return models.OccurrenceCancelled
		}
		return models.OccurrenceScheduled
	})
}

func expand(startDate, termEnd time.Time, freq models.Frequency, statusFor func(time.Time) models.OccurrenceStatus) ([]OccurrencePlan, error) {
	step, err := FrequencyStep(freq)
	if err != nil {
		return nil, err
	}

	start := DayOf(startDate)
	end := DayOf(termEnd)
	if start.After(end) {
		return nil, ErrInvalidStartDate
	}

	var plans []OccurrencePlan
	for date := start; !date.After(end); date = date.AddDate(0, 0, step) {
		plans = append(plans, OccurrencePlan{Date: date, Status: statusFor(date)})
		if step == 0 {
			break
		}
	}
	return plans, nil
}

// DayOf truncates a time to midnight in its own location.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
