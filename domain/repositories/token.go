package repositories

import "context"

// TokenSource returns the bearer token for backend requests. Implementations
// read persisted storage on every call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
