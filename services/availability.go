package services

import (
	"time"

	"github.com/nekesa/tutorhub/models"
)

// weekdayOrder is the canonical display order for the availability board.
var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

type TimeRangeAvailability struct {
	TimeRange string   `json:"time_range"`
	Tutors    []string `json:"tutors"`
}

type WeekdayAvailability struct {
	Weekday string                  `json:"weekday"`
	Ranges  []TimeRangeAvailability `json:"ranges"`
}

// BuildAvailabilityBoard groups available intervals Monday through Sunday,
// then by literal time-range string, each bucket listing the tutors offering
// that exact range. Read-only display data.
func BuildAvailabilityBoard(slots []models.TutorAvailabilitySlot) []WeekdayAvailability {
	type bucket struct {
		interval Interval
		tutors   []string
	}
	byDay := make(map[int][]*bucket)
	for _, slot := range slots {
		if slot.Status != models.SlotAvailable {
			continue
		}
		iv := Interval{Start: slot.StartMinute, End: slot.EndMinute}
		var found *bucket
		for _, b := range byDay[slot.Weekday] {
			if b.interval == iv {
				found = b
				break
			}
		}
		if found == nil {
			found = &bucket{interval: iv}
			byDay[slot.Weekday] = append(byDay[slot.Weekday], found)
		}
		found.tutors = append(found.tutors, slot.Tutor.FullName)
	}

	var board []WeekdayAvailability
	for _, day := range weekdayOrder {
		buckets := byDay[int(day)]
		if len(buckets) == 0 {
			continue
		}
		entry := WeekdayAvailability{Weekday: day.String()}
		for _, b := range buckets {
			entry.Ranges = append(entry.Ranges, TimeRangeAvailability{
				TimeRange: b.interval.String(),
				Tutors:    b.tutors,
			})
		}
		board = append(board, entry)
	}
	return board
}
