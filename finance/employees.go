package finance

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/verval/verval-cli/api"
)

const employeesPath = "/api/funcionarios"

// Status is the active flag shared by employees and users.
type Status string

const (
	StatusActive   Status = "Ativo"
	StatusInactive Status = "Inativo"
)

// ParseStatus accepts the backend names and "active"/"inactive".
func ParseStatus(s string) (Status, error) {
	switch s {
	case "":
		return "", nil
	case string(StatusActive), "ativo", "active":
		return StatusActive, nil
	case string(StatusInactive), "inativo", "inactive":
		return StatusInactive, nil
	}
	return "", fmt.Errorf("invalid status %q (want Ativo or Inativo)", s)
}

// Employee is a person who may post transactions on the owner's behalf.
type Employee struct {
	ID      string  `json:"id"`
	UserID  string  `json:"usuarioId"`
	Name    string  `json:"nome"`
	Email   string  `json:"email"`
	Phone   *string `json:"telefone"`
	CanPost bool    `json:"podeLancar"`
	Status  Status  `json:"status"`
}

// EmployeeInput is the body of create and update. Zero fields are left out.
type EmployeeInput struct {
	UserID   string  `json:"usuarioId,omitempty"`
	Name     string  `json:"nome,omitempty"`
	Email    string  `json:"email,omitempty"`
	Password string  `json:"senha,omitempty"`
	Phone    *string `json:"telefone,omitempty"`
	CanPost  *bool   `json:"podeLancar,omitempty"`
	Status   Status  `json:"status,omitempty"`
}

// EmployeeFilter narrows ListEmployees.
type EmployeeFilter struct {
	UserID string
	Status Status
}

// ListEmployees returns the employees matching f.
func (s *Service) ListEmployees(ctx context.Context, f EmployeeFilter) ([]Employee, error) {
	return api.GetList[Employee](ctx, s.client, api.Request{
		Path:  employeesPath,
		Query: query("usuarioId", f.UserID, "status", string(f.Status)),
	})
}

// GetEmployee fetches one employee.
func (s *Service) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	var e Employee
	if err := s.client.Do(ctx, api.Request{Path: employeesPath + "/" + escape(id)}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEmployee registers an employee under the session user unless
// in.UserID says otherwise.
func (s *Service) CreateEmployee(ctx context.Context, in EmployeeInput) (*Employee, error) {
	userID, err := s.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	if in.Name == "" || in.Email == "" {
		return nil, errors.New("employee name and email are required")
	}

	var e Employee
	if err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   employeesPath,
		Body:   in,
	}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEmployee changes the fields set in in.
func (s *Service) UpdateEmployee(ctx context.Context, id string, in EmployeeInput) (*Employee, error) {
	var e Employee
	if err := s.client.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   employeesPath + "/" + escape(id),
		Body:   in,
	}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// SetEmployeeStatus activates or deactivates an employee.
func (s *Service) SetEmployeeStatus(ctx context.Context, id string, status Status) (*Employee, error) {
	return s.UpdateEmployee(ctx, id, EmployeeInput{Status: status})
}

// DeleteEmployee removes an employee.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	return s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   employeesPath + "/" + escape(id),
	}, nil)
}
