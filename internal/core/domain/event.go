package domain

import "time"

// AuthEventKind names a state transition of a user's session or reset status.
type AuthEventKind string

const (
	EventRegistered       AuthEventKind = "registered"
	EventSessionCreated   AuthEventKind = "session_created"
	EventSessionDestroyed AuthEventKind = "session_destroyed"
	EventResetRequested   AuthEventKind = "reset_requested"
	EventPasswordUpdated  AuthEventKind = "password_updated"
)

// AuthEvent is an audit record of a single transition.
type AuthEvent struct {
	Kind   AuthEventKind `json:"kind" bson:"kind"`
	UserID int64         `json:"user_id" bson:"user_id"`
	Email  string        `json:"email" bson:"email"`
	At     time.Time     `json:"at" bson:"at"`
}
