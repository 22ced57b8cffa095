// Package task holds the classification and ordering rules applied to every
// task listing: what counts as overdue, how pending/overdue slice the task
// set, and the order in which tasks are returned. The store derives its
// filtered queries from this package and the HTTP layer uses it to annotate
// responses, so both paths agree by construction.
package task

import (
	"fmt"
	"sort"
	"time"

	"taskmanager/internal/models"
)

// Filter selects which slice of the task set a listing returns.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterPending Filter = "pending"
	FilterOverdue Filter = "overdue"
)

// ParseFilter maps the ?type= query value to a Filter. An empty value means
// no filtering.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "all":
		return FilterAll, nil
	case "pending":
		return FilterPending, nil
	case "overdue":
		return FilterOverdue, nil
	default:
		return "", fmt.Errorf("unknown task filter %q", s)
	}
}

// Today returns the current calendar date in storage format.
func Today() string {
	return time.Now().Format(models.DateLayout)
}

// IsOverdue reports whether a task due on dueDate is overdue relative to
// today. Both values are YYYY-MM-DD strings, so lexicographic comparison is
// chronological comparison. The boundary is strict: a task due today is not
// overdue.
func IsOverdue(dueDate, today string) bool {
	return dueDate < today
}

// Matches reports whether a task with the given due date falls into the
// filter's slice of the task set. Pending and overdue partition the set: a
// task due exactly today is pending.
func (f Filter) Matches(dueDate, today string) bool {
	switch f {
	case FilterPending:
		return !IsOverdue(dueDate, today)
	case FilterOverdue:
		return IsOverdue(dueDate, today)
	default:
		return true
	}
}

// Predicate returns a SQL condition equivalent to Matches so that
// storage-level queries stay derived from the same rule. ok is false for
// FilterAll, which needs no condition.
func (f Filter) Predicate(today string) (cond string, args []any, ok bool) {
	switch f {
	case FilterPending:
		return "due_date >= ?", []any{today}, true
	case FilterOverdue:
		return "due_date < ?", []any{today}, true
	default:
		return "", nil, false
	}
}

// Classify returns the tasks matching the filter, preserving input order.
func Classify(tasks []models.Task, f Filter, today string) []models.Task {
	if f == FilterAll {
		return tasks
	}
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Matches(t.DueDate, today) {
			out = append(out, t)
		}
	}
	return out
}

// Order sorts tasks ascending by due date, then name, then priority. The
// sort is stable, so tasks with fully identical keys keep their incoming
// order; the store feeds tasks in by ascending id, which makes id the
// effective final tie-break.
func Order(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.DueDate != b.DueDate {
			return a.DueDate < b.DueDate
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Priority < b.Priority
	})
}

// Annotate recomputes the derived IsOverdue flag on each task. Overdue-ness
// depends on the current date, so it is evaluated on every read and never
// stored.
func Annotate(tasks []models.Task, today string) {
	for i := range tasks {
		tasks[i].IsOverdue = IsOverdue(tasks[i].DueDate, today)
	}
}
