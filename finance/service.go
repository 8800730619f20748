// Package finance wraps the verval backend's domain endpoints: transactions
// (lancamentos), dashboard indicators, accounts, recurring billings,
// employees and users.
package finance

import (
	"errors"
	"net/url"
	"strings"

	"github.com/verval/verval-cli/api"
)

// ErrNoUser is returned when an operation needs a user id and neither the
// caller nor the session supplied one.
var ErrNoUser = errors.New("no user id: log in or pass one explicitly")

// Service issues domain requests through an authenticated api.Client.
type Service struct {
	client *api.Client
}

// New returns a Service using client.
func New(client *api.Client) *Service {
	return &Service{client: client}
}

// userID returns id, or the session's user when id is empty.
func (s *Service) userID(id string) (string, error) {
	if id = strings.TrimSpace(id); id != "" {
		return id, nil
	}
	if id = s.client.Session().User(); id != "" {
		return id, nil
	}
	return "", ErrNoUser
}

// query builds url.Values from key/value pairs, skipping empty values.
func query(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}

func escape(id string) string {
	return url.PathEscape(id)
}
