package client

import (
	"time"

	"github.com/taskdeck/backend/domain"
)

// DueWindow names a relative due-date range.
type DueWindow string

const (
	DueAny       DueWindow = ""
	DueToday     DueWindow = "today"
	DueThisWeek  DueWindow = "week"
	DueThisMonth DueWindow = "month"
	DueOverdue   DueWindow = "overdue"
)

// Criteria narrows a task list by completion state, priority and due window.
// Zero values mean "no constraint".
type Criteria struct {
	Completed *bool
	Priority  domain.Priority
	Due       DueWindow
	Now       time.Time
}

// Filter returns the tasks matching the criteria, preserving input order. It
// is a pure function over the slice; the due windows match the server's list
// endpoint so local and remote filtering agree.
func Filter(tasks []domain.Task, c Criteria) []domain.Task {
	if c.Now.IsZero() {
		c.Now = time.Now()
	}

	out := make([]domain.Task, 0, len(tasks))
	for i := range tasks {
		t := tasks[i]
		if c.Completed != nil && t.Completed != *c.Completed {
			continue
		}
		if c.Priority != "" && t.Priority != c.Priority {
			continue
		}
		if !matchesDueWindow(&t, c.Due, c.Now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesDueWindow(t *domain.Task, window DueWindow, now time.Time) bool {
	if window == DueAny {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	due := *t.DueDate
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch window {
	case DueToday:
		return !due.Before(startOfDay) && due.Before(startOfDay.AddDate(0, 0, 1))
	case DueThisWeek:
		return !due.Before(startOfDay) && due.Before(startOfDay.AddDate(0, 0, 7))
	case DueThisMonth:
		return !due.Before(startOfDay) && due.Before(startOfDay.AddDate(0, 1, 0))
	case DueOverdue:
		return due.Before(now) && !t.Completed
	}
	return false
}
