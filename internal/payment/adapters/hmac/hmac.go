// Package hmac verifies generic hex encoded HMAC-SHA256 signatures, with
// or without a "sha256=" prefix.
package hmac

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
)

const Provider = "hmac"

type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

func (v *Verifier) Provider() string {
	return Provider
}

func (v *Verifier) Verify(ctx context.Context, content []byte, signature string, secret []byte) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" || len(secret) == 0 {
		return paymentdomain.ErrInvalidSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(content, secret)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func Sign(content, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(content)
	return mac.Sum(nil)
}

// SignHex returns the signature value a sender puts in the envelope.
func SignHex(content, secret []byte) string {
	return hex.EncodeToString(Sign(content, secret))
}
