package models

type Customer struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type Employee struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
}
