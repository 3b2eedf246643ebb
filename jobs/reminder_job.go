package jobs

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nekesa/tutorhub/database"
	"github.com/nekesa/tutorhub/models"
	"github.com/nekesa/tutorhub/notifications"
	"github.com/nekesa/tutorhub/services"
)

const minutesPerDay = 1440

// reminderWindow is one day's slice of the "starts in 60 to 120 minutes"
// range. Within two hours of midnight the range rolls into the next day, so
// a single run can produce two windows.
type reminderWindow struct {
	Date time.Time
	From int
	To   int
}

func reminderWindows(now time.Time) []reminderWindow {
	today := services.DayOf(now)
	minuteOfDay := now.Hour()*60 + now.Minute()
	from := minuteOfDay + 60
	to := minuteOfDay + 120

	var windows []reminderWindow
	if from < minutesPerDay {
		windows = append(windows, reminderWindow{Date: today, From: from, To: min(to, minutesPerDay)})
	}
	if to > minutesPerDay {
		windows = append(windows, reminderWindow{
			Date: today.AddDate(0, 0, 1),
			From: max(from-minutesPerDay, 0),
			To:   to - minutesPerDay,
		})
	}
	return windows
}

// SendLessonReminders emails both sides of every lesson starting roughly an
// hour from now. Runs hourly, so the window is the next 60-120 minutes to
// avoid double sends.
func SendLessonReminders() {
	zap.S().Info("Running job: SendLessonReminders...")

	var upcoming []models.LessonOccurrence
	for _, w := range reminderWindows(time.Now()) {
		var batch []models.LessonOccurrence
		err := database.DB.
			Preload("Lesson").
			Preload("Lesson.Student").
			Preload("Lesson.Tutor").
			Preload("Lesson.Subject").
			Where("date = ? AND status = ? AND start_minute >= ? AND start_minute < ?",
				w.Date, models.OccurrenceScheduled, w.From, w.To).
			Find(&batch).Error
		if err != nil {
			zap.S().Errorf("Error checking for upcoming lessons: %v", err)
			return
		}
		upcoming = append(upcoming, batch...)
	}

	for _, occurrence := range upcoming {
		zap.S().Infof("Sending reminder for occurrence ID: %s", occurrence.ID)

		startAt := services.FormatMinute(occurrence.StartMinute)
		emailSubject := "Reminder: Your Lesson Starts in 1 Hour!"
		emailBody := fmt.Sprintf(
			"<h1>Lesson Reminder</h1><p>Hi there,</p><p>This is a friendly reminder that your %s lesson is scheduled to start in one hour at %s.</p>",
			occurrence.Lesson.Subject.Name,
			startAt,
		)

		go notifications.SendEmail(occurrence.Lesson.Student.FullName, occurrence.Lesson.Student.Email, emailSubject, emailBody)
		go notifications.SendEmail(occurrence.Lesson.Tutor.FullName, occurrence.Lesson.Tutor.Email, emailSubject, emailBody)
	}
}
