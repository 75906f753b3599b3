// Package client implements the consumer side of the task API: a thin RPC
// gateway plus an optimistic, eventually consistent task cache.
package client

// Session is the explicit identity value a gateway is constructed with. It is
// created after authentication succeeds and discarded on logout; nothing in
// this package holds ambient global auth state.
type Session struct {
	UserID string
	Token  string
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}
