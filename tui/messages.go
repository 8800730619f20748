package tui

// MsgBanner carries the backend the session talks to.
type MsgBanner struct{ Server string }

// MsgSessionRestored signals that a stored session was loaded.
type MsgSessionRestored struct{ Name string }

// MsgSessionMissing signals that no stored session exists.
type MsgSessionMissing struct{}

// MsgLoggingIn signals that the login request is in flight.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{ Name string }

// MsgLoginFailed signals that the backend refused the credentials.
type MsgLoginFailed struct{ Err error }

// MsgLoggedOut signals that the session and stored credentials were removed.
type MsgLoggedOut struct{}

// MsgLoading signals that a backend call for what has started.
type MsgLoading struct{ What string }

// MsgLoaded signals that the call started by MsgLoading finished.
type MsgLoaded struct{ What string }

// MsgRequestFailed signals a non-fatal request failure.
type MsgRequestFailed struct{ Err error }

// MsgAccessTokenRejected signals that the access token was rejected (401).
type MsgAccessTokenRejected struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgTokenRefreshedRetrying signals that the original request is being resent.
type MsgTokenRefreshedRetrying struct{}

// MsgCredentialSaveFailed signals that persisting rotated tokens failed.
type MsgCredentialSaveFailed struct{ Err error }

// MsgSessionCleared signals that the session was dropped after a failed refresh.
type MsgSessionCleared struct{}

// MsgDone signals successful completion of the command.
type MsgDone struct{ Summary string }

// MsgFatal signals a fatal error that should terminate the command.
type MsgFatal struct{ Err error }
