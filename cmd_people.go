package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verval/verval-cli/auth"
	"github.com/verval/verval-cli/finance"
	"github.com/verval/verval-cli/tui"
)

func newEmployeesCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "employees",
		Aliases: []string{"funcionarios"},
		Short:   "Manage the employees who may post transactions",
	}

	var user, status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List employees",
		Args:  cobra.NoArgs,
	}
	list.Flags().StringVar(&user, "user", "", "User ID (default: the logged-in user)")
	list.Flags().StringVar(&status, "status", "", "Only Ativo or Inativo")
	list.RunE = r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
		st, err := finance.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		if _, err := a.requireSession(ctx); err != nil {
			return nil, err
		}
		if user == "" {
			user = a.client.Session().User()
		}
		a.d.Loading("employees")
		employees, err := a.finance.ListEmployees(ctx, finance.EmployeeFilter{UserID: user, Status: st})
		if err != nil {
			return nil, err
		}
		a.d.Loaded("employees")

		res := &tui.Result{
			Title:   fmt.Sprintf("%d employees", len(employees)),
			Headers: []string{"ID", "Name", "Email", "Phone", "Can post", "Status"},
			Empty:   "No employees",
		}
		for _, e := range employees {
			phone := ""
			if e.Phone != nil {
				phone = *e.Phone
			}
			res.Rows = append(res.Rows, []string{e.ID, e.Name, e.Email, phone, yesNo(e.CanPost), string(e.Status)})
		}
		return res, nil
	})

	cmd.AddCommand(
		list,
		newEmployeeGetCommand(r),
		newEmployeeWriteCommand(r, "create"),
		newEmployeeWriteCommand(r, "update"),
		newEmployeeStatusCommand(r, finance.StatusActive),
		newEmployeeStatusCommand(r, finance.StatusInactive),
		newDeleteCommand(r, "employee", func(ctx context.Context, a *app, id string) error {
			return a.finance.DeleteEmployee(ctx, id)
		}),
	)
	return cmd
}

func employeeResult(e *finance.Employee) *tui.Result {
	fields := []tui.Field{
		{Label: "ID", Value: e.ID},
		{Label: "Name", Value: e.Name},
		{Label: "Email", Value: e.Email},
	}
	if e.Phone != nil {
		fields = append(fields, tui.Field{Label: "Phone", Value: *e.Phone})
	}
	fields = append(fields,
		tui.Field{Label: "Can post", Value: yesNo(e.CanPost)},
		tui.Field{Label: "Status", Value: string(e.Status)},
	)
	return &tui.Result{Title: "Employee " + e.ID, Fields: fields}
}

func newEmployeeGetCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				e, err := a.finance.GetEmployee(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return employeeResult(e), nil
			})(cmd, args)
		},
	}
}

func newEmployeeWriteCommand(r *runner, verb string) *cobra.Command {
	var (
		name, email, phone, user string
		canPost, passwordStdin   bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an employee",
		Args:  cobra.NoArgs,
	}
	if verb == "update" {
		cmd.Use = "update ID"
		cmd.Short = "Change an employee"
		cmd.Args = cobra.ExactArgs(1)
	}
	fl := cmd.Flags()
	fl.StringVar(&name, "name", "", "Name")
	fl.StringVar(&email, "email", "", "Email")
	fl.StringVar(&phone, "phone", "", "Phone")
	fl.BoolVar(&canPost, "can-post", true, "Whether the employee may post transactions")
	fl.BoolVar(&passwordStdin, "password-stdin", false, "Read the employee's password from stdin")
	fl.StringVar(&user, "user", "", "Owner user ID (default: the logged-in user)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in := finance.EmployeeInput{UserID: user, Name: name, Email: email}
		if cmd.Flags().Changed("phone") {
			in.Phone = &phone
		}
		if cmd.Flags().Changed("can-post") || verb == "create" {
			in.CanPost = &canPost
		}
		if passwordStdin {
			lines, err := readLines(cmd.InOrStdin(), 1)
			if err != nil {
				return err
			}
			in.Password = lines[0]
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			var (
				e   *finance.Employee
				err error
			)
			if verb == "create" {
				e, err = a.finance.CreateEmployee(ctx, in)
			} else {
				e, err = a.finance.UpdateEmployee(ctx, args[0], in)
			}
			if err != nil {
				return nil, err
			}
			return employeeResult(e), nil
		})(cmd, args)
	}
	return cmd
}

func newEmployeeStatusCommand(r *runner, status finance.Status) *cobra.Command {
	use, short := "activate ID", "Reactivate an employee"
	if status == finance.StatusInactive {
		use, short = "deactivate ID", "Deactivate an employee"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				e, err := a.finance.SetEmployeeStatus(ctx, args[0], status)
				if err != nil {
					return nil, err
				}
				return employeeResult(e), nil
			})(cmd, args)
		},
	}
}

func newUsersCommand(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"usuarios"},
		Short:   "Manage user accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			a.d.Loading("users")
			users, err := a.finance.ListUsers(ctx)
			if err != nil {
				return nil, err
			}
			a.d.Loaded("users")

			res := &tui.Result{
				Title:   fmt.Sprintf("%d users", len(users)),
				Headers: []string{"ID", "Name", "Email", "Profile", "Status"},
				Empty:   "No users",
			}
			for _, u := range users {
				res.Rows = append(res.Rows, []string{u.ID, u.Name, u.Email, string(u.Profile()), u.Status})
			}
			return res, nil
		}),
	}

	cmd.AddCommand(
		list,
		newUserWriteCommand(r, "create"),
		newUserWriteCommand(r, "update"),
		newUserStatusCommand(r, finance.StatusActive),
		newUserStatusCommand(r, finance.StatusInactive),
		newDeleteCommand(r, "user", func(ctx context.Context, a *app, id string) error {
			return a.finance.DeleteUser(ctx, id)
		}),
		newPasswordCommand(r),
	)
	return cmd
}

func userResult(u *auth.User) *tui.Result {
	return &tui.Result{
		Title: "User " + u.ID,
		Fields: []tui.Field{
			{Label: "ID", Value: u.ID},
			{Label: "Name", Value: u.Name},
			{Label: "Email", Value: u.Email},
			{Label: "Phone", Value: u.Phone},
			{Label: "Profile", Value: string(u.Profile())},
			{Label: "Status", Value: u.Status},
		},
	}
}

func newUserWriteCommand(r *runner, verb string) *cobra.Command {
	var (
		name, email, phone   string
		admin, passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user account",
		Args:  cobra.NoArgs,
	}
	if verb == "update" {
		cmd.Use = "update ID"
		cmd.Short = "Change a user account"
		cmd.Args = cobra.ExactArgs(1)
	}
	fl := cmd.Flags()
	fl.StringVar(&name, "name", "", "Name")
	fl.StringVar(&email, "email", "", "Email")
	fl.StringVar(&phone, "phone", "", "Phone")
	fl.BoolVar(&admin, "admin", false, "Grant the admin profile")
	fl.BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		in := finance.UserInput{Name: name, Email: email, Phone: phone}
		if cmd.Flags().Changed("admin") {
			in.IsAdmin = &admin
		}
		if passwordStdin {
			lines, err := readLines(cmd.InOrStdin(), 1)
			if err != nil {
				return err
			}
			in.Password = lines[0]
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if _, err := a.requireSession(ctx); err != nil {
				return nil, err
			}
			var (
				u   *auth.User
				err error
			)
			if verb == "create" {
				u, err = a.finance.CreateUser(ctx, in)
			} else {
				u, err = a.finance.UpdateUser(ctx, args[0], in)
			}
			if err != nil {
				return nil, err
			}
			return userResult(u), nil
		})(cmd, args)
	}
	return cmd
}

func newUserStatusCommand(r *runner, status finance.Status) *cobra.Command {
	use, short := "activate ID", "Reactivate a user account"
	if status == finance.StatusInactive {
		use, short = "deactivate ID", "Deactivate a user account"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				u, err := a.finance.SetUserStatus(ctx, args[0], status)
				if err != nil {
					return nil, err
				}
				return userResult(u), nil
			})(cmd, args)
		},
	}
}

func newPasswordCommand(r *runner) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change a password; reads the current and the new password from stdin, one per line",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email (default: the logged-in user's)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		lines, err := readLines(cmd.InOrStdin(), 2)
		if err != nil {
			return err
		}
		return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
			if email == "" {
				user, err := a.auth.StoredUser(ctx)
				if err != nil {
					return nil, err
				}
				if user == nil {
					return nil, errors.New("no email given and no stored session; pass --email")
				}
				email = user.Email
			}
			if err := a.finance.ChangePassword(ctx, email, lines[0], lines[1]); err != nil {
				return nil, err
			}
			return &tui.Result{Title: "Password changed for " + email}, nil
		})(cmd, args)
	}
	return cmd
}

func newDeleteCommand(r *runner, what string, del func(ctx context.Context, a *app, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a " + what,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(func(ctx context.Context, a *app) (*tui.Result, error) {
				if _, err := a.requireSession(ctx); err != nil {
					return nil, err
				}
				if err := del(ctx, a, args[0]); err != nil {
					return nil, err
				}
				return &tui.Result{Title: fmt.Sprintf("Deleted %s %s", what, args[0])}, nil
			})(cmd, args)
		},
	}
}

// readLines reads n non-empty lines from in, trimming line endings.
func readLines(in io.Reader, n int) ([]string, error) {
	sc := bufio.NewScanner(in)
	lines := make([]string, 0, n)
	for len(lines) < n && sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(lines) < n {
		return nil, fmt.Errorf("expected %d line(s) on stdin, got %d", n, len(lines))
	}
	return lines, nil
}
