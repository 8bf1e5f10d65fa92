package paddle

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	paddlesdk "github.com/PaddleHQ/paddle-go-sdk/v4"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
)

const (
	Provider        = "paddle"
	SignatureHeader = "Paddle-Signature"
)

// Verifier checks Paddle-Signature style values ("ts=...;h1=...").
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

func (v *Verifier) Provider() string {
	return Provider
}

func (v *Verifier) Verify(ctx context.Context, content []byte, signature string, secret []byte) error {
	signature = strings.TrimSpace(signature)
	if signature == "" || len(secret) == 0 {
		return paymentdomain.ErrInvalidSignature
	}

	// The SDK verifies an *http.Request, so the signed content is wrapped
	// in one with the signature header set.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(content))
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	req.Header.Set(SignatureHeader, signature)

	ok, err := paddlesdk.NewWebhookVerifier(string(secret)).Verify(req)
	if err != nil || !ok {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}
