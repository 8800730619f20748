package finance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/verval/verval-cli/api"
)

const billingsPath = "/api/recorrencias"

const monthKeyLayout = "2006-01"

// ErrBillingNotFound is returned by UpdateBilling when the billing vanished
// between the update and the re-read.
var ErrBillingNotFound = errors.New("recurring billing not found")

// Billing is a recurring charge to a client, with a paid flag per month.
type Billing struct {
	ID       string  `json:"id"`
	UserID   string  `json:"usuarioId,omitempty"`
	Client   string  `json:"cliente"`
	Amount   float64 `json:"valor"`
	Category *string `json:"categoria"`
	Active   bool    `json:"ativo"`
	Start    string  `json:"inicio"`
	End      *string `json:"fim"`
	Note     *string `json:"observacao"`
	// DueDay is the day of the month the charge falls due, 1..31.
	DueDay *int `json:"vencimento_dia"`
	// Payments maps "YYYY-MM" to whether that month is paid. Never nil.
	Payments map[string]bool `json:"pagamentos"`
}

func (b *Billing) normalize() {
	if b.Payments == nil {
		b.Payments = map[string]bool{}
	}
}

// BillingInput is the body of create and update. Zero fields are left out.
type BillingInput struct {
	UserID   string   `json:"usuarioId,omitempty"`
	Client   string   `json:"cliente,omitempty"`
	Amount   *float64 `json:"valor,omitempty"`
	Category *string  `json:"categoria,omitempty"`
	Active   *bool    `json:"ativo,omitempty"`
	Start    string   `json:"inicio,omitempty"`
	End      *string  `json:"fim,omitempty"`
	Note     *string  `json:"observacao,omitempty"`
	DueDay   *int     `json:"vencimento_dia,omitempty"`
}

// ClampDueDay forces d into 1..31.
func ClampDueDay(d int) int {
	return max(1, min(d, 31))
}

func (in *BillingInput) clamp() {
	if in.DueDay != nil {
		d := ClampDueDay(*in.DueDay)
		in.DueDay = &d
	}
}

func billingQuery(userID string) api.Request {
	return api.Request{Query: query("usuarioId", userID)}
}

// ListBillings returns the user's recurring billings.
func (s *Service) ListBillings(ctx context.Context, userID string) ([]Billing, error) {
	userID, err := s.userID(userID)
	if err != nil {
		return nil, err
	}
	r := billingQuery(userID)
	r.Path = billingsPath
	billings, err := api.GetList[Billing](ctx, s.client, r)
	if err != nil {
		return nil, err
	}
	for i := range billings {
		billings[i].normalize()
	}
	return billings, nil
}

// GetBilling fetches one billing. A 404 yields nil and no error.
func (s *Service) GetBilling(ctx context.Context, id, userID string) (*Billing, error) {
	r := billingQuery(userID)
	r.Path = billingsPath + "/" + escape(id)

	var b Billing
	if err := s.client.Do(ctx, r, &b); err != nil {
		if api.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	b.normalize()
	return &b, nil
}

// CreateBilling creates a billing. The due day is clamped to 1..31 and the
// result always carries an empty payments map.
func (s *Service) CreateBilling(ctx context.Context, in BillingInput) (*Billing, error) {
	userID, err := s.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	if in.Client == "" {
		return nil, errors.New("client name is required")
	}
	if in.Amount == nil {
		return nil, errors.New("amount is required")
	}
	if in.Start == "" {
		return nil, errors.New("start date is required")
	}
	in.clamp()

	var b Billing
	if err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   billingsPath,
		Body:   in,
	}, &b); err != nil {
		return nil, err
	}
	b.Payments = map[string]bool{}
	return &b, nil
}

// UpdateBilling updates a billing and re-reads it, since the update answer
// does not include the payments.
func (s *Service) UpdateBilling(ctx context.Context, id string, in BillingInput) (*Billing, error) {
	in.clamp()
	r := billingQuery(in.UserID)
	r.Method = http.MethodPut
	r.Path = billingsPath + "/" + escape(id)
	r.Body = in
	if err := s.client.Do(ctx, r, nil); err != nil {
		return nil, err
	}

	b, err := s.GetBilling(ctx, id, in.UserID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBillingNotFound, id)
	}
	return b, nil
}

// DeleteBilling removes a billing.
func (s *Service) DeleteBilling(ctx context.Context, id, userID string) error {
	r := billingQuery(userID)
	r.Method = http.MethodDelete
	r.Path = billingsPath + "/" + escape(id)
	return s.client.Do(ctx, r, nil)
}

// SetPayments replaces the whole payments map.
func (s *Service) SetPayments(ctx context.Context, id string, payments map[string]bool, userID string) (*Billing, error) {
	if payments == nil {
		payments = map[string]bool{}
	}
	r := billingQuery(userID)
	r.Method = http.MethodPut
	r.Path = billingsPath + "/" + escape(id) + "/pagamentos"
	r.Body = struct {
		UserID   string          `json:"usuarioId,omitempty"`
		Payments map[string]bool `json:"pagamentos"`
	}{userID, payments}

	var b Billing
	if err := s.client.Do(ctx, r, &b); err != nil {
		return nil, err
	}
	b.normalize()
	return &b, nil
}

// ToggleMonth flips the paid flag of month ("YYYY-MM"), or sets it to
// *value when value is not nil.
func (s *Service) ToggleMonth(ctx context.Context, id, month string, value *bool, userID string) (*Billing, error) {
	if _, err := ParseMonthKey(month); err != nil {
		return nil, err
	}
	r := billingQuery(userID)
	r.Method = http.MethodPost
	r.Path = billingsPath + "/" + escape(id) + "/toggle"
	r.Body = struct {
		Month  string `json:"ym"`
		Value  *bool  `json:"value,omitempty"`
		UserID string `json:"usuarioId,omitempty"`
	}{month, value, userID}

	var b Billing
	if err := s.client.Do(ctx, r, &b); err != nil {
		return nil, err
	}
	b.normalize()
	return &b, nil
}

// MonthKey formats t as "YYYY-MM".
func MonthKey(t time.Time) string {
	return t.Format(monthKeyLayout)
}

// ParseMonthKey parses "YYYY-MM" as the first day of that month, UTC.
func ParseMonthKey(key string) (time.Time, error) {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM)", key)
	}
	return t, nil
}

// MonthsBetween lists the month keys from from's month to to's month,
// inclusive. It is empty when to is before from.
func MonthsBetween(from, to time.Time) []string {
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)

	out := []string{}
	for !cur.After(end) {
		out = append(out, MonthKey(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// DueDate is the day month's charge falls due: the due day clamped to the
// month's length, or the 1st when unset.
func DueDate(month string, dueDay *int) (time.Time, error) {
	first, err := ParseMonthKey(month)
	if err != nil {
		return time.Time{}, err
	}
	day := 1
	if dueDay != nil {
		day = *dueDay
	}
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, max(1, min(day, last))-1), nil
}

// parseDay accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// DueMonths lists the months from the billing's start up to its end (or
// today) whose due date is not after today.
func (b *Billing) DueMonths(today time.Time) ([]string, error) {
	start, err := parseDay(b.Start)
	if err != nil {
		return nil, err
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	limit := today
	if b.End != nil && *b.End != "" {
		if limit, err = parseDay(*b.End); err != nil {
			return nil, err
		}
	}

	out := []string{}
	for _, m := range MonthsBetween(start, limit) {
		due, err := DueDate(m, b.DueDay)
		if err != nil {
			return nil, err
		}
		if !due.After(today) {
			out = append(out, m)
		}
	}
	return out, nil
}

// PendingMonths is DueMonths minus the months already paid, oldest first.
func (b *Billing) PendingMonths(today time.Time) ([]string, error) {
	due, err := b.DueMonths(today)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, m := range due {
		if !b.Payments[m] {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Overdue reports whether any due month is unpaid.
func (b *Billing) Overdue(today time.Time) (bool, error) {
	pending, err := b.PendingMonths(today)
	return len(pending) > 0, err
}

// NextDue returns the next unpaid due date from today on, looking up to six
// months ahead for open-ended billings. Without one it returns the oldest
// overdue date; ok is false when nothing is owed.
func (b *Billing) NextDue(today time.Time) (due time.Time, ok bool, err error) {
	start, err := parseDay(b.Start)
	if err != nil {
		return time.Time{}, false, err
	}
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	limit := time.Date(today.Year(), today.Month()+6, 1, 0, 0, 0, 0, time.UTC)
	if b.End != nil && *b.End != "" {
		if limit, err = parseDay(*b.End); err != nil {
			return time.Time{}, false, err
		}
	}

	for _, m := range MonthsBetween(start, limit) {
		d, err := DueDate(m, b.DueDay)
		if err != nil {
			return time.Time{}, false, err
		}
		if !d.Before(today) && !b.Payments[m] {
			return d, true, nil
		}
	}

	pending, err := b.PendingMonths(today)
	if err != nil || len(pending) == 0 {
		return time.Time{}, false, err
	}
	d, err := DueDate(pending[0], b.DueDay)
	return d, err == nil, err
}
