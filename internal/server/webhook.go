package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/railzwaylabs/billingcore/internal/payment/domain"
)

// @Summary      Payment provider webhook
// @Description  Reconcile one signed provider event. The provider defaults to stripe.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        org_id    path  string  true   "Organization ID"
// @Param        provider  path  string  false  "stripe, paddle or hmac"
// @Success      200  {object}  DataResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /webhooks/{org_id}/{provider} [post]
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("org_id")))
	if err != nil || orgID <= 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org_id"))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	result, err := s.webhooks.ProcessPaymentWebhook(c.Request.Context(), paymentdomain.WebhookRequest{
		OrgID:    orgID,
		Provider: c.Param("provider"),
		Payload:  payload,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, result)
}
