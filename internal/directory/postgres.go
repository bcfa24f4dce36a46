package directory

import (
	"context"
	"database/sql"

	"qms/walkin-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	_ Directory       = (*Postgres)(nil)
	_ SessionResolver = (*Postgres)(nil)
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Customer(ctx context.Context, customerID string) (models.Customer, bool, error) {
	var customer models.Customer
	var email, phone sql.NullString
	row := p.pool.QueryRow(ctx, `
		SELECT customer_id, name, email, phone
		FROM customers
		WHERE customer_id = $1
	`, customerID)
	if err := row.Scan(&customer.CustomerID, &customer.Name, &email, &phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Customer{}, false, nil
		}
		return models.Customer{}, false, errors.Wrap(err, "lookup customer")
	}
	customer.Email = email.String
	customer.Phone = phone.String
	return customer, true, nil
}

func (p *Postgres) Employee(ctx context.Context, employeeID string) (models.Employee, bool, error) {
	var employee models.Employee
	row := p.pool.QueryRow(ctx, `
		SELECT employee_id, name
		FROM employees
		WHERE employee_id = $1
	`, employeeID)
	if err := row.Scan(&employee.EmployeeID, &employee.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, false, nil
		}
		return models.Employee{}, false, errors.Wrap(err, "lookup employee")
	}
	return employee, true, nil
}

func (p *Postgres) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var session models.Session
	row := p.pool.QueryRow(ctx, `
		SELECT session_id, user_id, role, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > NOW()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.UserID, &session.Role, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, errors.Wrap(err, "lookup session")
	}
	return session, nil
}
