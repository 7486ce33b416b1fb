package domain

import "time"

// User models one registered principal.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword []byte    `json:"-"`
	SessionID      *string   `json:"-"`
	ResetToken     *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasSession reports whether the user currently holds an active session.
func (u *User) HasSession() bool {
	return u.SessionID != nil
}

// ResetPending reports whether a password reset flow is in progress.
func (u *User) ResetPending() bool {
	return u.ResetToken != nil
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.HashedPassword != nil {
		c.HashedPassword = append([]byte(nil), u.HashedPassword...)
	}
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		t := *u.ResetToken
		c.ResetToken = &t
	}
	return &c
}
