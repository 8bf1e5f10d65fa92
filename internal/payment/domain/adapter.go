package domain

import "context"

// Verifier checks a provider signature over the signed content of an
// envelope. Implementations return ErrInvalidSignature on mismatch.
type Verifier interface {
	Provider() string
	Verify(ctx context.Context, content []byte, signature string, secret []byte) error
}
