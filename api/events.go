package api

// Events receives progress notifications from the client. tui.Displayer
// implements it; NoopEvents discards everything.
type Events interface {
	AccessTokenRejected()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	TokenRefreshedRetrying()
	CredentialSaveFailed(err error)
	SessionCleared()
}

// NoopEvents ignores all notifications.
type NoopEvents struct{}

func (NoopEvents) AccessTokenRejected()         {}
func (NoopEvents) Refreshing()                  {}
func (NoopEvents) RefreshOK()                   {}
func (NoopEvents) RefreshFailed(_ error)        {}
func (NoopEvents) TokenRefreshedRetrying()      {}
func (NoopEvents) CredentialSaveFailed(_ error) {}
func (NoopEvents) SessionCleared()              {}
