package domain

import (
	"fmt"
	"time"
)

// Field names a User attribute as it is addressed by the credential store.
type Field string

const (
	FieldID             Field = "id"
	FieldEmail          Field = "email"
	FieldHashedPassword Field = "hashed_password"
	FieldSessionID      Field = "session_id"
	FieldResetToken     Field = "reset_token"
)

var lookupFields = map[Field]struct{}{
	FieldID:         {},
	FieldEmail:      {},
	FieldSessionID:  {},
	FieldResetToken: {},
}

var updatableFields = map[Field]struct{}{
	FieldHashedPassword: {},
	FieldSessionID:      {},
	FieldResetToken:     {},
}

// Lookup reports whether f may be used in a FindUserBy predicate.
func (f Field) Lookup() bool {
	_, ok := lookupFields[f]
	return ok
}

// Updatable reports whether f may be overwritten by UpdateUser.
// id and email are immutable once a user exists.
func (f Field) Updatable() bool {
	_, ok := updatableFields[f]
	return ok
}

// Criteria is a single-field equality predicate.
type Criteria struct {
	Field Field
	Value any
}

func ByID(id int64) Criteria { return Criteria{Field: FieldID, Value: id} }
func ByEmail(email string) Criteria { return Criteria{Field: FieldEmail, Value: email} }
func BySessionID(sessionID string) Criteria { return Criteria{Field: FieldSessionID, Value: sessionID} }
func ByResetToken(token string) Criteria { return Criteria{Field: FieldResetToken, Value: token} }

func (c Criteria) String() string {
	return fmt.Sprintf("%s=%v", c.Field, c.Value)
}

// Validate checks that the predicate names a lookup field and carries a value
// of the matching type.
func (c Criteria) Validate() error {
	if !c.Field.Lookup() {
		return fmt.Errorf("%w: %q is not a lookup field", ErrInvalidField, c.Field)
	}
	switch c.Field {
	case FieldID:
		if _, ok := c.Value.(int64); !ok {
			return fmt.Errorf("%w: %s expects int64, got %T", ErrInvalidInput, c.Field, c.Value)
		}
	default:
		if _, ok := c.Value.(string); !ok {
			return fmt.Errorf("%w: %s expects string, got %T", ErrInvalidInput, c.Field, c.Value)
		}
	}
	return nil
}

// Matches reports whether u satisfies the predicate. c must be valid.
func (c Criteria) Matches(u *User) bool {
	if u == nil {
		return false
	}
	switch c.Field {
	case FieldID:
		id, ok := c.Value.(int64)
		return ok && u.ID == id
	case FieldEmail:
		email, ok := c.Value.(string)
		return ok && u.Email == email
	case FieldSessionID:
		return optionalEquals(u.SessionID, c.Value)
	case FieldResetToken:
		return optionalEquals(u.ResetToken, c.Value)
	}
	return false
}

func optionalEquals(got *string, want any) bool {
	s, ok := want.(string)
	return ok && got != nil && *got == s
}

// Fields is a partial update. A nil value clears an optional attribute.
type Fields map[Field]any

// Validate rejects unknown or immutable field names and mistyped values.
func (f Fields) Validate() error {
	for name, v := range f {
		if !name.Updatable() {
			return fmt.Errorf("%w: %q cannot be updated", ErrInvalidField, name)
		}
		switch name {
		case FieldHashedPassword:
			b, ok := v.([]byte)
			if !ok || len(b) == 0 {
				return fmt.Errorf("%w: %s expects a non-empty []byte", ErrInvalidInput, name)
			}
		default:
			if _, err := OptionalString(v); err != nil {
				return fmt.Errorf("%w: %s", err, name)
			}
		}
	}
	return nil
}

// OptionalString normalizes the accepted encodings of an optional string
// field (nil, string, *string) to a *string.
func OptionalString(v any) (*string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &s, nil
	case *string:
		if s == nil {
			return nil, nil
		}
		c := *s
		return &c, nil
	default:
		return nil, fmt.Errorf("%w: expected string or nil, got %T", ErrInvalidInput, v)
	}
}

// Apply writes already validated fields onto u.
func (f Fields) Apply(u *User, now time.Time) {
	for name, v := range f {
		switch name {
		case FieldHashedPassword:
			u.HashedPassword = append([]byte(nil), v.([]byte)...)
		case FieldSessionID:
			u.SessionID, _ = OptionalString(v)
		case FieldResetToken:
			u.ResetToken, _ = OptionalString(v)
		}
	}
	u.UpdatedAt = now
}
