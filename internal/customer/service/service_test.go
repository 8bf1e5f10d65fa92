package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/railzwaylabs/billingcore/internal/apperror"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/customer/domain"
	"github.com/railzwaylabs/billingcore/internal/customer/repository"
	"github.com/railzwaylabs/billingcore/internal/customer/service"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"github.com/railzwaylabs/billingcore/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateAndGet(t *testing.T) {
	db := dbtest.Open(t, &domain.Customer{})
	node := dbtest.Node(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.Fixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), Repo: repository.Provide()})
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), orgID)

	c, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: " Ada ", Email: "ADA@Example.com", Country: "in", ExternalID: "cus_1", Metadata: map[string]any{"tier": "gold"}})
	require.NoError(t, err)
	assert.Equal(t, "Ada", c.Name)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "IN", c.Country)
	assert.Zero(t, c.TotalSpent)

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, orgID, got.OrgID)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "cus_1", *got.ExternalID)
	assert.Equal(t, "gold", got.Metadata["tier"])

	_, err = svc.Get(orgcontext.WithOrgID(context.Background(), orgID+1), c.ID)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Grace", Email: "grace@example.com", ExternalID: "cus_1"})
	assert.ErrorIs(t, err, domain.ErrDuplicateExternalID)
}

func TestCreateValidation(t *testing.T) {
	db := dbtest.Open(t, &domain.Customer{})
	node := dbtest.Node(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.Fixed(time.Now()), Repo: repository.Provide()})
	ctx := orgcontext.WithOrgID(context.Background(), node.Generate())

	cases := []struct {
		name string
		req  domain.CreateCustomerRequest
		want error
	}{
		{"blank name", domain.CreateCustomerRequest{Name: " ", Email: "a@example.com"}, domain.ErrInvalidName},
		{"bad email", domain.CreateCustomerRequest{Name: "Ada", Email: "not-an-email"}, domain.ErrInvalidEmail},
		{"bad country", domain.CreateCustomerRequest{Name: "Ada", Email: "a@example.com", Country: "IND"}, domain.ErrInvalidCountry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, apperror.ErrBadRequest)
		})
	}

	_, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Ada", Email: "a@example.com"})
	assert.Error(t, err, "organization is required")
}
