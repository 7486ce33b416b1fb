package ports

// PasswordHasher is a slow, salted one-way hash.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	// Verify never fails: a malformed hash simply does not match.
	Verify(hash []byte, password string) bool
}

// TokenGenerator produces unguessable identifiers for sessions and resets.
type TokenGenerator interface {
	NewToken() (string, error)
}
