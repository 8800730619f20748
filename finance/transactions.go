package finance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/verval/verval-cli/api"
)

const transactionsPath = "/api/lancamentos"

// Kind is the direction of a transaction.
type Kind string

const (
	KindIncome  Kind = "Entrada"
	KindExpense Kind = "Saida"
)

// ParseKind accepts the backend names and the English aliases "income" and
// "expense".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "":
		return "", nil
	case string(KindIncome), "entrada", "income", "in":
		return KindIncome, nil
	case string(KindExpense), "saida", "expense", "out":
		return KindExpense, nil
	}
	return "", fmt.Errorf("invalid transaction type %q (want Entrada or Saida)", s)
}

// RecurrenceKind says how a transaction repeats.
type RecurrenceKind string

const (
	RecurrenceNone        RecurrenceKind = "Nenhuma"
	RecurrenceMonthly     RecurrenceKind = "MensalIndefinida"
	RecurrenceInstallment RecurrenceKind = "Parcelado"
	RecurrenceMonthlyEnd  RecurrenceKind = "MensalFixa"
)

// Recurrence is the tagged union sent as "recorrencia". Installments is only
// meaningful for RecurrenceInstallment and End only for RecurrenceMonthlyEnd.
type Recurrence struct {
	Kind         RecurrenceKind `json:"tipo"`
	Installments int            `json:"parcelas,omitempty"`
	End          string         `json:"fim,omitempty"`
}

// NoRecurrence is a one-off transaction.
func NoRecurrence() *Recurrence { return &Recurrence{Kind: RecurrenceNone} }

// MonthlyRecurrence repeats every month with no end.
func MonthlyRecurrence() *Recurrence { return &Recurrence{Kind: RecurrenceMonthly} }

// InstallmentRecurrence splits the transaction into n monthly installments.
func InstallmentRecurrence(n int) *Recurrence {
	return &Recurrence{Kind: RecurrenceInstallment, Installments: n}
}

// MonthlyUntil repeats every month up to end.
func MonthlyUntil(end time.Time) *Recurrence {
	return &Recurrence{Kind: RecurrenceMonthlyEnd, End: end.UTC().Format(time.RFC3339)}
}

// Validate checks that the fields match the kind.
func (r *Recurrence) Validate() error {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case RecurrenceNone, RecurrenceMonthly:
		if r.Installments != 0 || r.End != "" {
			return fmt.Errorf("recurrence %s takes no installments or end date", r.Kind)
		}
	case RecurrenceInstallment:
		if r.Installments < 1 {
			return errors.New("installment recurrence needs at least one installment")
		}
		if r.End != "" {
			return errors.New("installment recurrence takes no end date")
		}
	case RecurrenceMonthlyEnd:
		if r.End == "" {
			return errors.New("fixed monthly recurrence needs an end date")
		}
		if r.Installments != 0 {
			return errors.New("fixed monthly recurrence takes no installments")
		}
	default:
		return fmt.Errorf("unknown recurrence type %q", r.Kind)
	}
	return nil
}

// Transaction is a lancamento as the backend returns it. Profit is computed
// server side and is read only.
type Transaction struct {
	ID          string      `json:"id"`
	UserID      string      `json:"usuarioId"`
	EmployeeID  *string     `json:"funcionarioId"`
	Kind        Kind        `json:"tipo"`
	Name        string      `json:"nome"`
	Amount      float64     `json:"valor"`
	Cost        *float64    `json:"custo,omitempty"`
	Profit      *float64    `json:"lucro,omitempty"`
	Category    string      `json:"categoria,omitempty"`
	Description string      `json:"descricao,omitempty"`
	Date        string      `json:"data"`
	Recurrence  *Recurrence `json:"recorrencia,omitempty"`
	AccountID   string      `json:"contaId,omitempty"`
	AccountName string      `json:"contaNome,omitempty"`
}

// TransactionInput is the body of create, update and patch. Zero fields are
// left out, so the same type serves full and partial updates. It has no
// profit field: the backend derives it.
type TransactionInput struct {
	UserID      string      `json:"usuarioId,omitempty"`
	EmployeeID  *string     `json:"funcionarioId,omitempty"`
	Kind        Kind        `json:"tipo,omitempty"`
	Name        string      `json:"nome,omitempty"`
	Amount      *float64    `json:"valor,omitempty"`
	Cost        *float64    `json:"custo,omitempty"`
	Category    string      `json:"categoria,omitempty"`
	Description string      `json:"descricao,omitempty"`
	Date        string      `json:"data,omitempty"`
	Recurrence  *Recurrence `json:"recorrencia,omitempty"`
	AccountID   string      `json:"contaId,omitempty"`
}

// SetDate stores t as an ISO-8601 timestamp.
func (in *TransactionInput) SetDate(t time.Time) {
	in.Date = t.UTC().Format(time.RFC3339)
}

// TransactionFilter narrows ListTransactions. Empty fields are not sent.
type TransactionFilter struct {
	UserID string
	Kind   Kind
}

// ListTransactions returns the transactions matching f.
func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	return api.GetList[Transaction](ctx, s.client, api.Request{
		Path:  transactionsPath,
		Query: query("usuarioId", f.UserID, "tipo", string(f.Kind)),
	})
}

// GetTransaction fetches one transaction.
func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	var t Transaction
	if err := s.client.Do(ctx, api.Request{Path: transactionsPath + "/" + escape(id)}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTransaction creates a transaction. The user defaults to the session
// user and the date to now.
func (s *Service) CreateTransaction(ctx context.Context, in TransactionInput) (*Transaction, error) {
	userID, err := s.userID(in.UserID)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	if in.Kind == "" {
		return nil, errors.New("transaction type is required")
	}
	if in.Name == "" {
		return nil, errors.New("transaction name is required")
	}
	if in.Amount == nil {
		return nil, errors.New("transaction amount is required")
	}
	if in.Date == "" {
		in.SetDate(time.Now())
	}
	if err := in.Recurrence.Validate(); err != nil {
		return nil, err
	}

	var t Transaction
	if err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   transactionsPath,
		Body:   in,
	}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransaction replaces a transaction with PUT.
func (s *Service) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*Transaction, error) {
	return s.writeTransaction(ctx, http.MethodPut, id, in)
}

// PatchTransaction changes only the fields set in in.
func (s *Service) PatchTransaction(ctx context.Context, id string, in TransactionInput) (*Transaction, error) {
	return s.writeTransaction(ctx, http.MethodPatch, id, in)
}

func (s *Service) writeTransaction(ctx context.Context, method, id string, in TransactionInput) (*Transaction, error) {
	if err := in.Recurrence.Validate(); err != nil {
		return nil, err
	}
	var t Transaction
	if err := s.client.Do(ctx, api.Request{
		Method: method,
		Path:   transactionsPath + "/" + escape(id),
		Body:   in,
	}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTransaction removes a transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	return s.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   transactionsPath + "/" + escape(id),
	}, nil)
}
