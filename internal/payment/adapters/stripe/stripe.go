package stripe

import (
	"context"
	"strings"
	"time"

	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	"github.com/stripe/stripe-go/v79/webhook"
)

const Provider = "stripe"

// Verifier checks Stripe-Signature style values ("t=...,v1=...").
type Verifier struct {
	tolerance time.Duration
}

func NewVerifier(tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{tolerance: tolerance}
}

func (v *Verifier) Provider() string {
	return Provider
}

func (v *Verifier) Verify(ctx context.Context, content []byte, signature string, secret []byte) error {
	signature = strings.TrimSpace(signature)
	if signature == "" || len(secret) == 0 {
		return paymentdomain.ErrInvalidSignature
	}
	if err := webhook.ValidatePayloadWithTolerance(content, signature, string(secret), v.tolerance); err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}
