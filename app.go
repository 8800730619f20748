package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/verval/verval-cli/api"
	"github.com/verval/verval-cli/auth"
	"github.com/verval/verval-cli/credstore"
	"github.com/verval/verval-cli/finance"
	"github.com/verval/verval-cli/session"
	"github.com/verval/verval-cli/telemetry"
	"github.com/verval/verval-cli/tui"
)

const telemetryShutdownTimeout = 5 * time.Second

// errNotLoggedIn is returned by commands that need a session when none is stored.
var errNotLoggedIn = errors.New("not logged in")

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     config
	log     zerolog.Logger
	d       tui.Displayer
	store   credstore.Store
	client  *api.Client
	auth    *auth.Manager
	finance *finance.Service
	money   *finance.Money
	now     func() time.Time

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg config, log zerolog.Logger, d tui.Displayer) (*app, error) {
	a := &app{
		cfg:   cfg,
		log:   log,
		d:     d,
		money: finance.NewMoney(cfg.locale),
		now:   time.Now,
	}

	switch cfg.store {
	case storeRedis:
		store, rdb, err := credstore.NewRedisStoreFromURL(cfg.redisURL, defaultRedisPrefix, cfg.serverURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	case storeMemory:
		a.store = credstore.NewMemoryStore()
	default:
		a.store = credstore.NewFileStore(cfg.tokenFile, cfg.serverURL, log)
	}

	tp, err := telemetry.NewMeterProvider(ctx, cfg.otlpEndpoint, "verval", version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tp.Shutdown)

	a.client, err = api.NewClient(api.Config{
		BaseURL:        cfg.serverURL,
		RefreshPath:    cfg.refreshPath,
		RequestTimeout: cfg.timeout,
		MaxRetries:     cfg.maxRetries,
	}, session.New(), a.store,
		api.WithLogger(log),
		api.WithEvents(d),
		api.WithMeterProvider(tp.MeterProvider),
	)
	if err != nil {
		return nil, err
	}

	a.auth = auth.NewManager(a.client, a.store, log)
	a.finance = finance.New(a.client)
	return a, nil
}

// close releases the store connection and flushes metrics.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Debug().Err(err).Msg("shutdown")
		}
	}
}

// requireSession restores the stored session or fails with errNotLoggedIn.
func (a *app) requireSession(ctx context.Context) (*auth.User, error) {
	user, err := a.auth.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		a.d.SessionMissing()
		return nil, errNotLoggedIn
	}
	a.d.SessionRestored(displayName(user))
	return user, nil
}

func displayName(u *auth.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// runner executes a command body with a live app and prints its result.
type runner struct {
	flags  *flagValues
	stdout io.Writer
	stderr io.Writer
	// isTerminal reports whether w is an interactive terminal.
	isTerminal func(w io.Writer) bool
}

type commandFunc func(ctx context.Context, a *app) (*tui.Result, error)

// run wraps fn so it can serve as a cobra RunE.
func (r *runner) run(fn commandFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(r.flags)
		if err != nil {
			fmt.Fprintf(r.stderr, "Error: %v\n", err)
			return reported{err}
		}
		warnPlaintext(r.stderr, cfg.serverURL)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := newLogger(r.stderr, cfg.logLevel)
		styled := !cfg.plain && r.isTerminal(r.stderr)

		var (
			d    tui.Displayer
			quit = func() {}
		)
		if styled {
			// The TUI renders to stderr so stdout stays pipeable. WithInput(nil)
			// keeps BubbleTea off stdin; Ctrl+C is handled by NotifyContext.
			p := tea.NewProgram(tui.NewModel(), tea.WithOutput(r.stderr), tea.WithInput(nil))
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := p.Run(); err != nil {
					fmt.Fprintf(r.stderr, "TUI error: %v\n", err)
				}
			}()
			d = tui.NewProgramDisplayer(p)
			quit = func() {
				p.Quit()
				wg.Wait()
			}
		} else {
			d = tui.NewPlainDisplayer(r.stderr)
		}
		d.Banner(cfg.serverURL)

		a, err := newApp(ctx, cfg, log, d)
		if err != nil {
			d.Fatal(err)
			quit()
			return reported{err}
		}
		defer a.close()

		result, err := fn(ctx, a)
		if err != nil {
			d.Fatal(err)
			quit()
			return reported{err}
		}
		summary := ""
		if result != nil {
			summary = result.Title
		}
		d.Done(summary)
		quit()

		if result != nil {
			return result.Render(r.stdout, styled && r.isTerminal(r.stdout))
		}
		return nil
	}
}

// reported marks an error the displayer has already shown.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

// exitCode maps an error to the process exit status: 2 when the user has to
// log in again, 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case api.IsUnauthenticated(err), errors.Is(err, errNotLoggedIn):
		return 2
	default:
		return 1
	}
}
