package queue

import (
	"context"

	"qms/walkin-service/internal/models"

	"github.com/sirupsen/logrus"
)

type lookupCache struct {
	customers map[string]*models.Customer
	employees map[string]*models.Employee
}

func newLookupCache() *lookupCache {
	return &lookupCache{
		customers: make(map[string]*models.Customer),
		employees: make(map[string]*models.Employee),
	}
}

// enrich adds display fields from the directory. Ids that do not resolve,
// or lookups that fail, leave the fields empty.
func (s *Service) enrich(ctx context.Context, entry models.QueueEntry, cache *lookupCache) models.EntryView {
	view := models.EntryView{QueueEntry: entry}
	if s.directory == nil {
		return view
	}
	if customer := s.customer(ctx, entry.CustomerID, cache); customer != nil {
		view.CustomerName = customer.Name
		view.CustomerEmail = customer.Email
		view.CustomerPhone = customer.Phone
	}
	if entry.EmployeeID != nil {
		if employee := s.employee(ctx, *entry.EmployeeID, cache); employee != nil {
			view.EmployeeName = employee.Name
		}
	}
	return view
}

func (s *Service) customer(ctx context.Context, customerID string, cache *lookupCache) *models.Customer {
	if cached, ok := cache.customers[customerID]; ok {
		return cached
	}
	customer, found, err := s.directory.Customer(ctx, customerID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"customer_id": customerID}).Warn("customer lookup failed")
		return nil
	}
	var result *models.Customer
	if found {
		result = &customer
	}
	cache.customers[customerID] = result
	return result
}

func (s *Service) employee(ctx context.Context, employeeID string, cache *lookupCache) *models.Employee {
	if cached, ok := cache.employees[employeeID]; ok {
		return cached
	}
	employee, found, err := s.directory.Employee(ctx, employeeID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"employee_id": employeeID}).Warn("employee lookup failed")
		return nil
	}
	var result *models.Employee
	if found {
		result = &employee
	}
	cache.employees[employeeID] = result
	return result
}
