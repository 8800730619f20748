package finance

import (
	"context"

	"github.com/verval/verval-cli/api"
)

const (
	indicatorsPath     = transactionsPath + "/indicadores"
	accountsPath       = "/api/contas"
	legacyAccountsPath = transactionsPath + "/contas"
)

// MonthComparison is one month of the income/expense history.
type MonthComparison struct {
	Month    string  `json:"mes"`
	Income   float64 `json:"entradas"`
	Expenses float64 `json:"saidas"`
	// misspelled field still sent by older backends
	LegacyExpenses *float64 `json:"saias,omitempty"`
}

// AccountTotals is the income and expenses of one account.
type AccountTotals struct {
	Account  string  `json:"conta"`
	Income   float64 `json:"entradas"`
	Expenses float64 `json:"saidas"`
}

// CategoryTotal is the sum of one category.
type CategoryTotal struct {
	Category string  `json:"categoria"`
	Total    float64 `json:"total"`
}

// Indicators is the dashboard summary.
type Indicators struct {
	IncomeToday          float64           `json:"entrouDia"`
	IncomeWeek           float64           `json:"entrouSemana"`
	IncomeMonth          float64           `json:"entrouMes"`
	Balance              float64           `json:"saldoTotal"`
	TotalIncome          float64           `json:"totalEntradas"`
	TotalExpenses        float64           `json:"totalSaidas"`
	Months               []MonthComparison `json:"comparacaoMeses"`
	ByAccount            []AccountTotals   `json:"porConta,omitempty"`
	TopIncomeCategories  []CategoryTotal   `json:"topCategoriasEntradas,omitempty"`
	TopExpenseCategories []CategoryTotal   `json:"topCategoriasSaidas,omitempty"`
}

func (ind *Indicators) normalize() {
	for i := range ind.Months {
		m := &ind.Months[i]
		if m.Expenses == 0 && m.LegacyExpenses != nil {
			m.Expenses = *m.LegacyExpenses
		}
		m.LegacyExpenses = nil
	}
	if ind.Months == nil {
		ind.Months = []MonthComparison{}
	}
}

// IndicatorFilter selects the dashboard window. Empty fields are not sent.
type IndicatorFilter struct {
	UserID    string
	Range     DateRange
	AccountID string
	Kind      Kind
}

// Indicators fetches the dashboard summary. The backend exposes it either as
// /indicadores?usuarioId= or as /indicadores/{usuarioId}; the second form is
// only tried when the first answers 404.
func (s *Service) Indicators(ctx context.Context, f IndicatorFilter) (*Indicators, error) {
	userID, err := s.userID(f.UserID)
	if err != nil {
		return nil, err
	}

	var ind Indicators
	err = s.client.Do(ctx, api.Request{
		Path: indicatorsPath,
		Query: query(
			"usuarioId", userID,
			"inicio", f.Range.Start,
			"fim", f.Range.End,
			"contaId", f.AccountID,
			"tipo", string(f.Kind),
		),
	}, &ind)
	if api.IsNotFound(err) {
		ind = Indicators{}
		err = s.client.Do(ctx, api.Request{
			Path: indicatorsPath + "/" + escape(userID),
			Query: query(
				"inicio", f.Range.Start,
				"fim", f.Range.End,
				"contaId", f.AccountID,
				"tipo", string(f.Kind),
			),
		}, &ind)
	}
	if err != nil {
		return nil, err
	}
	ind.normalize()
	return &ind, nil
}

// Account is a bank or cash account transactions can be attached to.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"nome"`
}

// Accounts lists the user's accounts, falling back to the older
// /api/lancamentos/contas route only when /api/contas answers 404.
func (s *Service) Accounts(ctx context.Context, userID string) ([]Account, error) {
	userID, err := s.userID(userID)
	if err != nil {
		return nil, err
	}
	q := query("usuarioId", userID)

	accounts, err := api.GetList[Account](ctx, s.client, api.Request{Path: accountsPath, Query: q})
	if api.IsNotFound(err) {
		accounts, err = api.GetList[Account](ctx, s.client, api.Request{Path: legacyAccountsPath, Query: q})
	}
	return accounts, err
}
