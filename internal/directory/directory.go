// Package directory resolves the customer and employee records that queue
// entries only reference by id, plus the staff sessions that guard writes.
package directory

import (
	"context"
	"errors"

	"qms/walkin-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Directory looks up display records. A missing record is reported with
// found=false, not an error.
type Directory interface {
	Customer(ctx context.Context, customerID string) (models.Customer, bool, error)
	Employee(ctx context.Context, employeeID string) (models.Employee, bool, error)
}

// SessionResolver returns the live session for an id, or ErrSessionNotFound
// when it is unknown or expired.
type SessionResolver interface {
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
}

// Static is an in-memory Directory for local runs and tests.
type Static struct {
	Customers map[string]models.Customer
	Employees map[string]models.Employee
}

func (s Static) Customer(ctx context.Context, customerID string) (models.Customer, bool, error) {
	customer, ok := s.Customers[customerID]
	return customer, ok, nil
}

func (s Static) Employee(ctx context.Context, employeeID string) (models.Employee, bool, error) {
	employee, ok := s.Employees[employeeID]
	return employee, ok, nil
}
