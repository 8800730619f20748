package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verval/verval-cli/finance"
	"github.com/verval/verval-cli/tui"
)

func newDashboardCommand(r *runner) *cobra.Command {
	var period, account, kind, user string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show income, expenses and balance for a period",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&period, "period", "mtd", "Period: hoje, 7d, 30d or mtd")
	cmd.Flags().StringVar(&account, "account", "", "Only this account ID")
	cmd.Flags().StringVar(&kind, "type", "", "Only Entrada or Saida")
	cmd.Flags().StringVar(&user, "user", "", "User ID (default: the logged-in user)")

	cmd.RunE = r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
		p, err := finance.ParsePeriod(period)
		if err != nil {
			return nil, err
		}
		k, err := finance.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		if _, err := a.requireSession(ctx); err != nil {
			return nil, err
		}

		a.d.Loading("dashboard")
		dash, err := a.finance.LoadDashboard(ctx, finance.IndicatorFilter{
			UserID:    user,
			Range:     p.Range(a.now()),
			AccountID: account,
			Kind:      k,
		}, a.log)
		if err != nil {
			return nil, err
		}
		a.d.Loaded("dashboard")
		return dashboardResult(dash, a.money), nil
	})
	return cmd
}

func dashboardResult(dash *finance.Dashboard, money *finance.Money) *tui.Result {
	ind := dash.Indicators
	res := &tui.Result{
		Title: fmt.Sprintf("Dashboard %s to %s", dash.Range.Start, dash.Range.End),
		Fields: []tui.Field{
			{Label: "Income today", Value: money.Format(ind.IncomeToday)},
			{Label: "Income this week", Value: money.Format(ind.IncomeWeek)},
			{Label: "Income this month", Value: money.Format(ind.IncomeMonth)},
			{Label: "Income", Value: money.Format(ind.TotalIncome)},
			{Label: "Expenses", Value: money.Format(ind.TotalExpenses)},
			{Label: "Balance", Value: money.Format(ind.Balance)},
		},
		Headers: []string{"Month", "Income", "Expenses", "Net"},
		Empty:   "No monthly data",
	}
	if len(dash.Accounts) > 0 {
		names := make([]string, 0, len(dash.Accounts))
		for _, acc := range dash.Accounts {
			names = append(names, acc.Name)
		}
		res.Fields = append(res.Fields, tui.Field{Label: "Accounts", Value: strings.Join(names, ", ")})
	}
	if len(ind.TopExpenseCategories) > 0 {
		top := ind.TopExpenseCategories[0]
		res.Fields = append(res.Fields, tui.Field{
			Label: "Top expense",
			Value: fmt.Sprintf("%s (%s)", top.Category, finance.Short(top.Total)),
		})
	}
	for _, m := range ind.Months {
		res.Rows = append(res.Rows, []string{
			m.Month,
			money.Format(m.Income),
			money.Format(m.Expenses),
			money.Format(m.Income - m.Expenses),
		})
	}
	return res
}

func newTransactionsCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions", "lancamentos"},
		Short:   "List and edit transactions",
	}
	cmd.AddCommand(
		newTxListCommand(r),
		newTxGetCommand(r),
		newTxWriteCommand(r, "create"),
		newTxWriteCommand(r, "update"),
		newTxWriteCommand(r, "patch"),
		newDeleteCommand(r, "transaction", func(ctx context.Context, a *app, id string) error {
			return a.finance.DeleteTransaction(ctx, id)
		}),
	)
	return cmd
}

func newTxListCommand(r *runner) *cobra.Command {
	var kind, user string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&kind, "type", "", "Only Entrada or Saida")
	cmd.Flags().StringVar(&user, "user", "", "User ID (default: the logged-in user)")

	cmd.RunE = r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
		k, err := finance.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		if _, err := a.requireSession(ctx); err != nil {
			return nil, err
		}
		if user == "" {
			user = a.client.Session().User()
		}

		a.d.Loading("transactions")
		list, err := a.finance.ListTransactions(ctx, finance.TransactionFilter{UserID: user, Kind: k})
		if err != nil {
			return nil, err
		}
		a.d.Loaded("transactions")
		return transactionsResult(list, a.money), nil
	})
	return cmd
}

func transactionsResult(list []finance.Transaction, money *finance.Money) *tui.Result {
	res := &tui.Result{
		Title:   fmt.Sprintf("%d transactions", len(list)),
		Headers: []string{"ID", "Date", "Type", "Name", "Category", "Account", "Amount"},
		Empty:   "No transactions",
	}
	var income, expenses float64
	for _, t := range list {
		if t.Kind == finance.KindExpense {
			expenses += t.Amount
		} else {
			income += t.Amount
		}
		res.Rows = append(res.Rows, []string{
			t.ID, day(t.Date), string(t.Kind), t.Name, t.Category, t.AccountName, money.Format(t.Amount),
		})
	}
	if len(list) > 0 {
		res.Fields = []tui.Field{
			{Label: "Income", Value: money.Format(income)},
			{Label: "Expenses", Value: money.Format(expenses)},
		}
	}
	return res
}

func transactionResult(t *finance.Transaction, money *finance.Money) *tui.Result {
	fields := []tui.Field{
		{Label: "ID", Value: t.ID},
		{Label: "Type", Value: string(t.Kind)},
		{Label: "Name", Value: t.Name},
		{Label: "Amount", Value: money.Format(t.Amount)},
		{Label: "Date", Value: day(t.Date)},
	}
	if t.Cost != nil {
		fields = append(fields, tui.Field{Label: "Cost", Value: money.Format(*t.Cost)})
	}
	if t.Profit != nil {
		fields = append(fields, tui.Field{Label: "Profit", Value: money.Format(*t.Profit)})
	}
	if t.Category != "" {
		fields = append(fields, tui.Field{Label: "Category", Value: t.Category})
	}
	if t.AccountName != "" || t.AccountID != "" {
		fields = append(fields, tui.Field{Label: "Account", Value: firstNonEmpty(t.AccountName, t.AccountID)})
	}
	if t.Description != "" {
		fields = append(fields, tui.Field{Label: "Description", Value: t.Description})
	}
	if t.Recurrence != nil {
		fields = append(fields, tui.Field{Label: "Recurrence", Value: describeRecurrence(t.Recurrence)})
	}
	return &tui.Result{Title: "Transaction " + t.ID, Fields: fields}
}

func newTxGetCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				t, err := a.finance.GetTransaction(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return transactionResult(t, a.money), nil
			})(cmd, args)
		},
	}
}

// txFlags binds the writable transaction fields. Pointer fields are only set
// when their flag was given so PATCH sends just what changed.
type txFlags struct {
	kind, name, category, description, date, account, employee, recurrence, user string
	amount, cost                                                              float64
}

func (f *txFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.kind, "type", "", "Entrada or Saida")
	fl.StringVar(&f.name, "name", "", "Name")
	fl.Float64Var(&f.amount, "amount", 0, "Amount")
	fl.Float64Var(&f.cost, "cost", 0, "Cost")
	fl.StringVar(&f.category, "category", "", "Category")
	fl.StringVar(&f.description, "description", "", "Description")
	fl.StringVar(&f.date, "date", "", "Date as YYYY-MM-DD (default: now on create)")
	fl.StringVar(&f.account, "account", "", "Account ID")
	fl.StringVar(&f.employee, "employee", "", "Employee ID posting the transaction")
	fl.StringVar(&f.recurrence, "recurrence", "",
		"none, monthly, installments:N or until:YYYY-MM-DD")
	fl.StringVar(&f.user, "user", "", "User ID (default: the logged-in user)")
}

func (f *txFlags) input(cmd *cobra.Command) (finance.TransactionInput, error) {
	kind, err := finance.ParseKind(f.kind)
	if err != nil {
		return finance.TransactionInput{}, err
	}
	in := finance.TransactionInput{
		UserID:      f.user,
		Kind:        kind,
		Name:        f.name,
		Category:    f.category,
		Description: f.description,
		AccountID:   f.account,
	}
	fl := cmd.Flags()
	if fl.Changed("amount") {
		in.Amount = &f.amount
	}
	if fl.Changed("cost") {
		in.Cost = &f.cost
	}
	if f.employee != "" {
		in.EmployeeID = &f.employee
	}
	if f.date != "" {
		t, err := time.ParseInLocation(time.DateOnly, f.date, time.Local)
		if err != nil {
			return finance.TransactionInput{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", f.date)
		}
		in.SetDate(t)
	}
	if f.recurrence != "" {
		if in.Recurrence, err = parseRecurrence(f.recurrence); err != nil {
			return finance.TransactionInput{}, err
		}
	}
	return in, nil
}

// parseRecurrence reads none, monthly, installments:N or until:YYYY-MM-DD.
func parseRecurrence(s string) (*finance.Recurrence, error) {
	kind, arg, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch kind {
	case "none", "nenhuma":
		return finance.NoRecurrence(), nil
	case "monthly", "mensal":
		return finance.MonthlyRecurrence(), nil
	case "installments", "parcelado":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid recurrence %q: want installments:N with N >= 1", s)
		}
		return finance.InstallmentRecurrence(n), nil
	case "until", "ate":
		end, err := time.ParseInLocation(time.DateOnly, arg, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence %q: want until:YYYY-MM-DD", s)
		}
		return finance.MonthlyUntil(end), nil
	}
	return nil, fmt.Errorf("invalid recurrence %q (want none, monthly, installments:N or until:YYYY-MM-DD)", s)
}

func describeRecurrence(r *finance.Recurrence) string {
	switch r.Kind {
	case finance.RecurrenceInstallment:
		return fmt.Sprintf("%d installments", r.Installments)
	case finance.RecurrenceMonthlyEnd:
		return "monthly until " + day(r.End)
	case finance.RecurrenceMonthly:
		return "monthly"
	default:
		return "none"
	}
}

func newTxWriteCommand(r *runner, verb string) *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{}
	switch verb {
	case "create":
		cmd.Use = "create"
		cmd.Short = "Create a transaction"
		cmd.Args = cobra.NoArgs
	case "update":
		cmd.Use = "update ID"
		cmd.Short = "Replace a transaction"
		cmd.Args = cobra.ExactArgs(1)
	default:
		cmd.Use = "patch ID"
		cmd.Short = "Change some fields of a transaction"
		cmd.Args = cobra.ExactArgs(1)
	}
	f.register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in, err := f.input(cmd)
		if err != nil {
			return err
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			var t *finance.Transaction
			switch verb {
			case "create":
				t, err = a.finance.CreateTransaction(ctx, in)
			case "update":
				t, err = a.finance.UpdateTransaction(ctx, args[0], in)
			default:
				t, err = a.finance.PatchTransaction(ctx, args[0], in)
			}
			if err != nil {
				return nil, err
			}
			return transactionResult(t, a.money), nil
		})(cmd, args)
	}
	return cmd
}

// day trims an RFC 3339 timestamp to its date.
func day(s string) string {
	if len(s) > len(time.DateOnly) {
		return s[:len(time.DateOnly)]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
