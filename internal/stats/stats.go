// Package stats computes productivity statistics from the store's
// collections. Everything here is a pure function over snapshots; the
// store remains the only component that talks to the backend.
package stats

import (
	"sort"
	"time"

	"github.com/planward/planward/internal/model"
)

// Overview summarizes the whole task collection.
type Overview struct {
	Total          int
	Upcoming       int
	Overdue        int
	Completed      int
	Canceled       int
	CompletionRate int // percent of non-canceled tasks completed
}

// Overviews computes the overview for a task snapshot.
func Overviews(tasks []model.Task) Overview {
	var o Overview
	o.Total = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case model.StatusUpcoming:
			o.Upcoming++
		case model.StatusOverdue:
			o.Overdue++
		case model.StatusCompleted:
			o.Completed++
		case model.StatusCanceled:
			o.Canceled++
		}
	}
	if active := o.Total - o.Canceled; active > 0 {
		o.CompletionRate = o.Completed * 100 / active
	}
	return o
}

// CategoryStat is one category's share of the work.
type CategoryStat struct {
	Category       model.Category
	Total          int
	Completed      int
	CompletionRate int
}

// CategoryPerformance computes per-category totals, ordered by total
// descending with ties broken by name.
func CategoryPerformance(tasks []model.Task, categories []model.Category) []CategoryStat {
	byID := make(map[string]*CategoryStat, len(categories))
	out := make([]CategoryStat, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryStat{Category: c})
	}
	for i := range out {
		byID[out[i].Category.ID] = &out[i]
	}
	for _, t := range tasks {
		st, ok := byID[t.CategoryID]
		if !ok {
			continue
		}
		st.Total++
		if t.Status == model.StatusCompleted {
			st.Completed++
		}
	}
	for i := range out {
		if out[i].Total > 0 {
			out[i].CompletionRate = out[i].Completed * 100 / out[i].Total
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category.Name < out[j].Category.Name
	})
	return out
}

// TopCategories returns the n busiest categories.
func TopCategories(tasks []model.Task, categories []model.Category, n int) []CategoryStat {
	perf := CategoryPerformance(tasks, categories)
	if len(perf) > n {
		perf = perf[:n]
	}
	return perf
}

// DayActivity is one weekday's created/completed counts.
type DayActivity struct {
	Day       time.Weekday
	Created   int
	Completed int
}

// WeeklyActivity computes per-day activity for the week containing now.
// The week starts on Monday when mondayStart is set, Sunday otherwise.
func WeeklyActivity(tasks []model.Task, now time.Time, mondayStart bool) []DayActivity {
	start := weekStart(now, mondayStart)
	end := start.AddDate(0, 0, 7)

	days := make([]DayActivity, 7)
	for i := range days {
		days[i].Day = start.AddDate(0, 0, i).Weekday()
	}

	index := func(ts time.Time) (int, bool) {
		if ts.Before(start) || !ts.Before(end) {
			return 0, false
		}
		return int(ts.Sub(start).Hours() / 24), true
	}

	for _, t := range tasks {
		if i, ok := index(t.CreatedAt); ok {
			days[i].Created++
		}
		if t.Status == model.StatusCompleted {
			if i, ok := index(t.UpdatedAt); ok {
				days[i].Completed++
			}
		}
	}
	return days
}

// DuePreview returns tasks due on the day after now, soonest first.
// Completed and canceled tasks are excluded.
func DuePreview(tasks []model.Task, now time.Time) []model.Task {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var out []model.Task
	for _, t := range tasks {
		if t.DueAt == nil {
			continue
		}
		if t.Status == model.StatusCompleted || t.Status == model.StatusCanceled {
			continue
		}
		if !t.DueAt.Before(dayStart) && t.DueAt.Before(dayEnd) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(*out[j].DueAt) })
	return out
}

func weekStart(now time.Time, mondayStart bool) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := int(day.Weekday())
	if mondayStart {
		offset = (offset + 6) % 7
	}
	return day.AddDate(0, 0, -offset)
}
