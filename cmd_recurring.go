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

func newRecurringCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recurring",
		Aliases: []string{"recorrencias", "billings"},
		Short:   "Manage recurring billings and their monthly payments",
	}
	cmd.PersistentFlags().String("user", "", "User ID (default: the logged-in user)")

	cmd.AddCommand(
		newRecurringListCommand(r, false),
		newRecurringListCommand(r, true),
		newRecurringGetCommand(r),
		newRecurringWriteCommand(r, "create"),
		newRecurringWriteCommand(r, "update"),
		newRecurringDeleteCommand(r),
		newRecurringPayCommand(r),
		newRecurringToggleCommand(r),
	)
	return cmd
}

// userFlag reads the --user persistent flag of the recurring command.
func userFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("user")
	return v
}

func newRecurringListCommand(r *runner, pendingOnly bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring billings",
		Args:  cobra.NoArgs,
	}
	if pendingOnly {
		cmd.Use = "pending"
		cmd.Short = "List billings with unpaid months"
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		user := userFlag(cmd)
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			a.d.Loading("recurring billings")
			list, err := a.finance.ListBillings(ctx, user)
			if err != nil {
				return nil, err
			}
			a.d.Loaded("recurring billings")
			return billingsResult(list, a.money, a.now(), pendingOnly)
		})(cmd, args)
	}
	return cmd
}

func billingsResult(list []finance.Billing, money *finance.Money, now time.Time, pendingOnly bool) (*tui.Result, error) {
	res := &tui.Result{
		Headers: []string{"ID", "Client", "Amount", "Due day", "Active", "Pending", "Next due"},
		Empty:   "No recurring billings",
	}
	var owed float64
	for _, b := range list {
		pending, err := b.PendingMonths(now)
		if err != nil {
			return nil, fmt.Errorf("billing %s: %w", b.ID, err)
		}
		if pendingOnly && len(pending) == 0 {
			continue
		}
		owed += b.Amount * float64(len(pending))

		next := "-"
		if due, ok, err := b.NextDue(now); err != nil {
			return nil, fmt.Errorf("billing %s: %w", b.ID, err)
		} else if ok {
			next = due.Format(time.DateOnly)
		}
		res.Rows = append(res.Rows, []string{
			b.ID,
			b.Client,
			money.Format(b.Amount),
			dueDay(b.DueDay),
			yesNo(b.Active),
			strings.Join(pending, " "),
			next,
		})
	}
	if pendingOnly {
		res.Title = fmt.Sprintf("%d billings with unpaid months", len(res.Rows))
		res.Empty = "Nothing pending"
		if len(res.Rows) > 0 {
			res.Fields = []tui.Field{{Label: "Owed", Value: money.Format(owed)}}
		}
	} else {
		res.Title = fmt.Sprintf("%d recurring billings", len(res.Rows))
	}
	return res, nil
}

func billingResult(b *finance.Billing, money *finance.Money, now time.Time) (*tui.Result, error) {
	pending, err := b.PendingMonths(now)
	if err != nil {
		return nil, err
	}
	fields := []tui.Field{
		{Label: "ID", Value: b.ID},
		{Label: "Client", Value: b.Client},
		{Label: "Amount", Value: money.Format(b.Amount)},
		{Label: "Active", Value: yesNo(b.Active)},
		{Label: "Start", Value: day(b.Start)},
		{Label: "Due day", Value: dueDay(b.DueDay)},
	}
	if b.End != nil {
		fields = append(fields, tui.Field{Label: "End", Value: day(*b.End)})
	}
	if b.Category != nil {
		fields = append(fields, tui.Field{Label: "Category", Value: *b.Category})
	}
	if b.Note != nil {
		fields = append(fields, tui.Field{Label: "Note", Value: *b.Note})
	}
	fields = append(fields, tui.Field{Label: "Pending", Value: strings.Join(pending, " ")})

	res := &tui.Result{
		Title:   "Billing " + b.ID,
		Fields:  fields,
		Headers: []string{"Month", "Paid"},
		Empty:   "No payments recorded",
	}
	due, err := b.DueMonths(now)
	if err != nil {
		return nil, err
	}
	for _, m := range due {
		res.Rows = append(res.Rows, []string{m, yesNo(b.Payments[m])})
	}
	return res, nil
}

func newRecurringGetCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a billing and its monthly payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := userFlag(cmd)
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				b, err := a.finance.GetBilling(ctx, args[0], user)
				if err != nil {
					return nil, err
				}
				if b == nil {
					return nil, fmt.Errorf("%w: %s", finance.ErrBillingNotFound, args[0])
				}
				return billingResult(b, a.money, a.now())
			})(cmd, args)
		},
	}
}

type billingFlags struct {
	client, category, start, end, note string
	amount                             float64
	dueDay                             int
	active                             bool
}

func (f *billingFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.client, "client", "", "Client name")
	fl.Float64Var(&f.amount, "amount", 0, "Monthly amount")
	fl.StringVar(&f.category, "category", "", "Category")
	fl.StringVar(&f.start, "start", "", "First month as YYYY-MM-DD (default: today on create)")
	fl.StringVar(&f.end, "end", "", "Last day as YYYY-MM-DD")
	fl.StringVar(&f.note, "note", "", "Note")
	fl.IntVar(&f.dueDay, "due-day", 0, "Day of the month the charge is due (1-31)")
	fl.BoolVar(&f.active, "active", true, "Whether the billing is active")
}

func (f *billingFlags) input(cmd *cobra.Command, create bool, now time.Time) (finance.BillingInput, error) {
	in := finance.BillingInput{UserID: userFlag(cmd), Client: f.client}
	fl := cmd.Flags()
	if fl.Changed("amount") {
		in.Amount = &f.amount
	}
	if fl.Changed("category") {
		in.Category = &f.category
	}
	if fl.Changed("note") {
		in.Note = &f.note
	}
	if fl.Changed("due-day") {
		in.DueDay = &f.dueDay
	}
	if fl.Changed("active") || create {
		in.Active = &f.active
	}
	for _, d := range []string{f.start, f.end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return finance.BillingInput{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}
	in.Start = f.start
	if in.Start == "" && create {
		in.Start = now.Format(time.DateOnly)
	}
	if f.end != "" {
		in.End = &f.end
	}
	return in, nil
}

func newRecurringWriteCommand(r *runner, verb string) *cobra.Command {
	var f billingFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recurring billing",
		Args:  cobra.NoArgs,
	}
	if verb == "update" {
		cmd.Use = "update ID"
		cmd.Short = "Update a recurring billing"
		cmd.Args = cobra.ExactArgs(1)
	}
	f.register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in, err := f.input(cmd, verb == "create", time.Now())
		if err != nil {
			return err
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			var b *finance.Billing
			if verb == "create" {
				b, err = a.finance.CreateBilling(ctx, in)
			} else {
				b, err = a.finance.UpdateBilling(ctx, args[0], in)
			}
			if err != nil {
				return nil, err
			}
			return billingResult(b, a.money, a.now())
		})(cmd, args)
	}
	return cmd
}

func newRecurringDeleteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recurring billing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := userFlag(cmd)
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				if err := a.finance.DeleteBilling(ctx, args[0], user); err != nil {
					return nil, err
				}
				return &tui.Result{Title: "Deleted billing " + args[0]}, nil
			})(cmd, args)
		},
	}
}

func newRecurringPayCommand(r *runner) *cobra.Command {
	var unpay bool
	cmd := &cobra.Command{
		Use:   "pay ID MONTH...",
		Short: "Mark months (YYYY-MM) as paid",
		Args:  cobra.MinimumNArgs(2),
	}
	cmd.Flags().BoolVar(&unpay, "undo", false, "Mark the months as unpaid instead")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		user := userFlag(cmd)
		id, months := args[0], args[1:]
		for _, m := range months {
			if _, err := finance.ParseMonthKey(m); err != nil {
				return err
			}
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			b, err := a.finance.GetBilling(ctx, id, user)
			if err != nil {
				return nil, err
			}
			if b == nil {
				return nil, fmt.Errorf("%w: %s", finance.ErrBillingNotFound, id)
			}

			payments := make(map[string]bool, len(b.Payments)+len(months))
			for k, v := range b.Payments {
				payments[k] = v
			}
			for _, m := range months {
				if unpay {
					delete(payments, m)
				} else {
					payments[m] = true
				}
			}
			if user == "" {
				user = b.UserID
			}
			if b, err = a.finance.SetPayments(ctx, id, payments, user); err != nil {
				return nil, err
			}
			return billingResult(b, a.money, a.now())
		})(cmd, args)
	}
	return cmd
}

func newRecurringToggleCommand(r *runner) *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "toggle ID MONTH",
		Short: "Flip the paid flag of one month (YYYY-MM)",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().StringVar(&set, "set", "", "Set the flag to true or false instead of flipping it")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		user := userFlag(cmd)
		var value *bool
		if set != "" {
			v, err := strconv.ParseBool(set)
			if err != nil {
				return fmt.Errorf("invalid --set %q: want true or false", set)
			}
			value = &v
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			b, err := a.finance.ToggleMonth(ctx, args[0], args[1], value, user)
			if err != nil {
				return nil, err
			}
			return billingResult(b, a.money, a.now())
		})(cmd, args)
	}
	return cmd
}

func dueDay(d *int) string {
	if d == nil {
		return "-"
	}
	return strconv.Itoa(*d)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
