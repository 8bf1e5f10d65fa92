package adapters_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/railzwaylabs/billingcore/internal/payment/adapters"
	hmacverifier "github.com/railzwaylabs/billingcore/internal/payment/adapters/hmac"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/paddle"
	"github.com/railzwaylabs/billingcore/internal/payment/adapters/stripe"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
)

var (
	content = []byte(`invoice.paid.{"customerId":"cus_1","amount":1000}`)
	secret  = []byte("whsec_test")
)

func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(stripe.NewVerifier(5*time.Minute), paddle.NewVerifier(), hmacverifier.NewVerifier())
}

func TestRegistryProviders(t *testing.T) {
	r := newRegistry()
	assert.Equal(t, []string{"hmac", "paddle", "stripe"}, r.Providers())
	assert.True(t, r.ProviderExists("stripe"))
	_, ok := r.Verifier("paypal")
	assert.False(t, ok)
}

func TestStripeVerifier(t *testing.T) {
	v, _ := newRegistry().Verifier("stripe")
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   content,
		Secret:    string(secret),
		Timestamp: time.Now(),
	})

	require.NoError(t, v.Verify(context.Background(), content, signed.Header, secret))
	assert.ErrorIs(t, v.Verify(context.Background(), content, signed.Header, []byte("other")), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(context.Background(), append(content, ' '), signed.Header, secret), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(context.Background(), content, "", secret), paymentdomain.ErrInvalidSignature)

	stale := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   content,
		Secret:    string(secret),
		Timestamp: time.Now().Add(-time.Hour),
	})
	assert.ErrorIs(t, v.Verify(context.Background(), content, stale.Header, secret), paymentdomain.ErrInvalidSignature)
}

func paddleSignature(ts int64, body, key []byte) string {
	mac := hmac.New(sha256.New, key)
	_, _ = fmt.Fprintf(mac, "%d:%s", ts, body)
	return "ts=" + strconv.FormatInt(ts, 10) + ";h1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestPaddleVerifier(t *testing.T) {
	v, _ := newRegistry().Verifier("paddle")
	sig := paddleSignature(time.Now().Unix(), content, secret)

	require.NoError(t, v.Verify(context.Background(), content, sig, secret))
	assert.ErrorIs(t, v.Verify(context.Background(), content, sig, []byte("other")), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(context.Background(), content, "h1=deadbeef", secret), paymentdomain.ErrInvalidSignature)
}

func TestHMACVerifier(t *testing.T) {
	v, _ := newRegistry().Verifier("hmac")
	sig := hmacverifier.SignHex(content, secret)

	require.NoError(t, v.Verify(context.Background(), content, sig, secret))
	require.NoError(t, v.Verify(context.Background(), content, "sha256="+sig, secret))
	assert.ErrorIs(t, v.Verify(context.Background(), content, "zz", secret), paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify(context.Background(), []byte("other"), sig, secret), paymentdomain.ErrInvalidSignature)
}
