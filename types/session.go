package types

import "time"

// Session event types broadcast on the auth events channel.
const (
	EventLogin       = "login"
	EventLogout      = "logout"
	EventForceLogout = "force-logout"
)

// SessionEvent is broadcast whenever a session changes so every node (and
// every client of a node) observes logins and logouts as they happen.
type SessionEvent struct {
	// Type is one of EventLogin, EventLogout, EventForceLogout.
	Type string `json:"type"`

	// ClientID identifies the browser/device instance the event concerns.
	ClientID string `json:"clientId"`

	// Email is the account the event concerns. Empty on plain logouts.
	Email string `json:"email,omitempty"`

	// Time is when the event was emitted.
	Time time.Time `json:"time"`
}

// Session is the server-side record of an issued login.
type Session struct {
	ClientID  string    `json:"clientId"`
	User      User      `json:"user"`
	Token     string    `json:"token"`
	LoginTime time.Time `json:"loginTime"`
}
