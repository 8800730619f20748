package finance

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/verval/verval-cli/api"
)

// Dashboard is what the dashboard command shows.
type Dashboard struct {
	Range      DateRange
	Indicators *Indicators
	Accounts   []Account
}

// LoadDashboard fetches indicators and accounts concurrently. Accounts are
// decoration: their failure yields an empty list unless the session is gone.
func (s *Service) LoadDashboard(ctx context.Context, f IndicatorFilter, log zerolog.Logger) (*Dashboard, error) {
	userID, err := s.userID(f.UserID)
	if err != nil {
		return nil, err
	}
	f.UserID = userID

	d := &Dashboard{Range: f.Range, Accounts: []Account{}}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ind, err := s.Indicators(gctx, f)
		if err != nil {
			return err
		}
		d.Indicators = ind
		return nil
	})
	g.Go(func() error {
		accounts, err := s.Accounts(gctx, userID)
		if err != nil {
			if api.IsUnauthenticated(err) {
				return err
			}
			log.Warn().Err(err).Msg("failed to load accounts")
			return nil
		}
		d.Accounts = accounts
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
