package monitor

import (
	"strings"
	"time"

	"basegraph.app/pulse/internal/model"
)

var urgencyKeywords = []string{"urgent", "critical", "asap", "emergency", "priority"}

const (
	dueSoonDays        = 2
	overduePointsDay   = 5
	overduePointsCap   = 50
	dueTomorrowPoints  = 20
	dueThisWeekPoints  = 10
	keywordPoints      = 30
	heavyNudgeCount    = 5
	heavyNudgePoints   = 20
	repeatNudgeCount   = 2
	repeatNudgePoints  = 10
	dueTomorrowMaxDays = 1
	dueThisWeekMaxDays = 3
)

// Score classifies a task and ranks it. It is a pure function of the snapshot and
// now; a missing due date disables every date-based term.
func Score(task model.TaskSnapshot, now time.Time) model.Urgency {
	daysLate, hasDue := DaysLate(task, now)
	u := model.Urgency{DaysLate: daysLate, HasDueDate: hasDue}

	switch {
	case task.IsCompleted():
		u.State = model.UrgencyCompleted
		return u
	case hasDue && daysLate > 0:
		u.State = model.UrgencyOverdue
	case hasDue && -daysLate <= dueSoonDays:
		u.State = model.UrgencyDueSoon
	default:
		u.State = model.UrgencyNormal
	}

	score := 0
	if hasDue {
		if daysLate > 0 {
			score += min(overduePointsCap, daysLate*overduePointsDay)
		} else {
			daysUntil := -daysLate
			switch {
			case daysUntil <= dueTomorrowMaxDays:
				score += dueTomorrowPoints
			case daysUntil <= dueThisWeekMaxDays:
				score += dueThisWeekPoints
			}
		}
	}

	if hasUrgencyKeyword(task.Title) {
		score += keywordPoints
	}

	switch {
	case task.BotCommentCount > heavyNudgeCount:
		score += heavyNudgePoints
	case task.BotCommentCount > repeatNudgeCount:
		score += repeatNudgePoints
	}

	u.Score = score
	return u
}

// DaysLate is the signed day distance between the due date and the reference
// date: now for pending tasks, the completion date for completed ones. Positive
// means late. Due dates are calendar dates; the reference instant is reduced to
// its calendar date in now's location. DueAt carries its date in UTC, whatever
// zone the value was decoded in.
func DaysLate(task model.TaskSnapshot, now time.Time) (int, bool) {
	if task.DueAt == nil {
		return 0, false
	}

	ref := now
	if task.CompletedAt != nil {
		ref = *task.CompletedAt
	}

	due := civilDate(task.DueAt.UTC())
	day := civilDate(ref.In(now.Location()))
	return int(day.Sub(due).Hours() / 24), true
}

// civilDate drops the clock and zone, keeping the calendar date.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func hasUrgencyKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range urgencyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
