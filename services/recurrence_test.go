package services

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nekesa/tutorhub/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFrequencyStep(t *testing.T) {
	cases := []struct {
		freq models.Frequency
		step int
	}{
		{models.FrequencyOnce, 0},
		{models.FrequencyWeekly, 7},
		{models.FrequencyBiweekly, 14},
		{models.FrequencyMonthly, 28},
	}
	for _, tc := range cases {
		step, err := FrequencyStep(tc.freq)
		require.NoError(t, err)
		require.Equal(t, tc.step, step)
	}

	_, err := FrequencyStep(models.Frequency("fortnightly"))
	require.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestExpandOccurrences(t *testing.T) {
	t.Run("weekly over three weeks yields four dates", func(t *testing.T) {
		plans, err := ExpandOccurrences(day(2024, time.September, 1), day(2024, time.September, 22), models.FrequencyWeekly)
		require.NoError(t, err)
		require.Len(t, plans, 4)
		require.Equal(t, day(2024, time.September, 1), plans[0].Date)
		require.Equal(t, day(2024, time.September, 8), plans[1].Date)
		require.Equal(t, day(2024, time.September, 15), plans[2].Date)
		require.Equal(t, day(2024, time.September, 22), plans[3].Date)
		for _, p := range plans {
			require.Equal(t, models.OccurrenceScheduled, p.Status)
		}
	})

	t.Run("once yields a single date regardless of term length", func(t *testing.T) {
		plans, err := ExpandOccurrences(day(2024, time.September, 5), day(2024, time.December, 20), models.FrequencyOnce)
		require.NoError(t, err)
		require.Len(t, plans, 1)
		require.Equal(t, day(2024, time.September, 5), plans[0].Date)
	})

	t.Run("monthly steps a fixed 28 days", func(t *testing.T) {
		plans, err := ExpandOccurrences(day(2024, time.September, 2), day(2024, time.December, 20), models.FrequencyMonthly)
		require.NoError(t, err)
		require.Equal(t, []time.Time{
			day(2024, time.September, 2),
			day(2024, time.September, 30),
			day(2024, time.October, 28),
			day(2024, time.November, 25),
		}, datesOf(plans))
	})

	t.Run("dates are strictly increasing and inside the term", func(t *testing.T) {
		start := day(2024, time.September, 3)
		end := day(2024, time.December, 20)
		plans, err := ExpandOccurrences(start, end, models.FrequencyBiweekly)
		require.NoError(t, err)
		require.NotEmpty(t, plans)
		require.Equal(t, start, plans[0].Date)
		for i, p := range plans {
			require.False(t, p.Date.Before(start))
			require.False(t, p.Date.After(end))
			if i > 0 {
				require.Equal(t, 14*24*time.Hour, p.Date.Sub(plans[i-1].Date))
			}
		}
	})

	t.Run("start after term end is rejected", func(t *testing.T) {
		_, err := ExpandOccurrences(day(2024, time.December, 21), day(2024, time.December, 20), models.FrequencyWeekly)
		require.ErrorIs(t, err, ErrInvalidStartDate)
	})

	t.Run("unknown frequency is rejected", func(t *testing.T) {
		_, err := ExpandOccurrences(day(2024, time.September, 1), day(2024, time.September, 22), models.Frequency("daily"))
		require.ErrorIs(t, err, ErrInvalidFrequency)
	})

	t.Run("time of day does not shift the expansion", func(t *testing.T) {
		noon := time.Date(2024, time.September, 1, 12, 30, 0, 0, time.UTC)
		plans, err := ExpandOccurrences(noon, day(2024, time.September, 22), models.FrequencyWeekly)
		require.NoError(t, err)
		require.Equal(t, day(2024, time.September, 1), plans[0].Date)
	})
}

func TestBackfillOccurrences(t *testing.T) {
	start := day(2024, time.September, 1)
	end := day(2024, time.December, 20)
	today := day(2024, time.October, 15)

	plans, err := BackfillOccurrences(start, end, models.FrequencyWeekly, today, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.NotEmpty(t, plans)

	for _, p := range plans {
		if p.Date.Before(today) {
			require.Contains(t, []models.OccurrenceStatus{models.OccurrenceCompleted, models.OccurrenceCancelled}, p.Status)
		} else {
			require.Equal(t, models.OccurrenceScheduled, p.Status)
		}
	}

	// Same seed, same statuses.
	again, err := BackfillOccurrences(start, end, models.FrequencyWeekly, today, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Equal(t, plans, again)
}

func datesOf(plans []OccurrencePlan) []time.Time {
	dates := make([]time.Time, len(plans))
	for i, p := range plans {
		dates[i] = p.Date
	}
	return dates
}
