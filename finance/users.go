package finance

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/verval/verval-cli/api"
	"github.com/verval/verval-cli/auth"
)

const (
	usersPath          = "/api/usuarios"
	changePasswordPath = usersPath + "/alterar-senha"
)

// ErrEmailTaken is returned by CreateUser when the backend answers 409.
var ErrEmailTaken = errors.New("email already registered")

// UserInput is the body of create and update. Zero fields are left out.
type UserInput struct {
	Name     string `json:"nome,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"telefone,omitempty"`
	Status   Status `json:"status,omitempty"`
	IsAdmin  *bool  `json:"isAdmin,omitempty"`
	Password string `json:"senha,omitempty"`
}

// ListUsers returns every user account (admin only on the backend).
func (s *Service) ListUsers(ctx context.Context) ([]auth.User, error) {
	return api.GetList[auth.User](ctx, s.client, api.Request{Path: usersPath})
}

// CreateUser registers a user account.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*auth.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, errors.New("name, email and password are required")
	}
	if in.Status == "" {
		in.Status = StatusActive
	}

	var u auth.User
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   usersPath,
		Body:   in,
	}, &u)
	if api.StatusOf(err) == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, in.Email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser changes the fields set in in.
func (s *Service) UpdateUser(ctx context.Context, id string, in UserInput) (*auth.User, error) {
	var u auth.User
	if err := s.client.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   usersPath + "/" + escape(id),
		Body:   in,
	}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserStatus activates or deactivates a user.
func (s *Service) SetUserStatus(ctx context.Context, id string, status Status) (*auth.User, error) {
	return s.UpdateUser(ctx, id, UserInput{Status: status})
}

// DeleteUser removes a user account.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   usersPath + "/" + escape(id),
	}, nil)
}

// ChangePassword changes a password given the current one. The endpoint
// authenticates by the current password, so no bearer token is sent and a
// 401 means a wrong password, not an expired session.
func (s *Service) ChangePassword(ctx context.Context, email, current, next string) error {
	if email == "" || current == "" || next == "" {
		return errors.New("email, current and new password are required")
	}
	return s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   changePasswordPath,
		Body: map[string]string{
			"email":      email,
			"senhaAtual": current,
			"novaSenha":  next,
		},
		SkipAuth: true,
		NoRetry:  true,
	}, nil)
}
