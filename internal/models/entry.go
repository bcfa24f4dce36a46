package models

import "time"

type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

var knownStatuses = []Status{
	StatusWaiting,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// ParseStatus accepts only the five known status values.
func ParseStatus(raw string) (Status, bool) {
	for _, status := range knownStatuses {
		if string(status) == raw {
			return status, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type QueueEntry struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customer_id"`
	EmployeeID        *string   `json:"employee_id,omitempty"`
	AppointmentID     *string   `json:"appointment_id,omitempty"`
	QueueNumber       int       `json:"queue_number"`
	QueueDay          time.Time `json:"queue_day"`
	Status            Status    `json:"status"`
	Position          int       `json:"position"`
	EstimatedWaitTime int       `json:"estimated_wait_time"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EntryView is a QueueEntry plus display fields resolved at read time.
type EntryView struct {
	QueueEntry
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	EmployeeName  string `json:"employee_name,omitempty"`
}

// EntryPatch carries optional staff edits; nil fields are left untouched.
type EntryPatch struct {
	EmployeeID        *string `json:"employee_id"`
	EstimatedWaitTime *int    `json:"estimated_wait_time"`
	Notes             *string `json:"notes"`
	Status            *string `json:"status"`
}

type Statistics struct {
	TotalWaiting    int `json:"total_waiting"`
	AverageWaitTime int `json:"average_wait_time"`
	LongestWait     int `json:"longest_wait"`
	IssuedToday     int `json:"issued_today"`
}
