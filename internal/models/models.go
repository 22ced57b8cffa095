package models

import "time"

// DateLayout is the storage and wire format for calendar dates. Due dates
// carry no time-of-day component.
const DateLayout = "2006-01-02"

// Priority bounds; 1 is the lowest urgency, 5 the highest.
const (
	PriorityMin = 1
	PriorityMax = 5
)

// Task represents a single tracked item with a due date and priority.
type Task struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	DueDate   string    `json:"dueDate"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	// IsOverdue is derived at read time and never persisted. The key is
	// present in responses only when the task is overdue.
	IsOverdue bool `json:"isOverdue,omitempty"`
}
