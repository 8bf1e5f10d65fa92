package server

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/railzwaylabs/billingcore/internal/subscription/domain"
)

// @Summary      Create Subscription
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body subscriptiondomain.CreateSubscriptionRequest true "Create Subscription Request"
// @Success      201  {object}  DataResponse
// @Router       /api/subscriptions [post]
func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, sub)
}

// @Summary      List Subscriptions
// @Tags         subscriptions
// @Produce      json
// @Security     ApiKeyAuth
// @Param        status       query  string  false  "Status"
// @Param        customer_id  query  string  false  "Customer ID"
// @Param        page_token   query  string  false  "Page Token"
// @Param        page_size    query  int     false  "Page Size"
// @Success      200  {object}  ListResponse
// @Router       /api/subscriptions [get]
func (s *Server) ListSubscriptions(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subs, pageInfo, err := s.subscriptionSvc.List(c.Request.Context(), subscriptiondomain.ListSubscriptionRequest{
		Status:     strings.TrimSpace(c.Query("status")),
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
	}, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, subs, pageInfo)
}

// @Summary      Get Subscription
// @Tags         subscriptions
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Subscription ID"
// @Success      200  {object}  DataResponse
// @Router       /api/subscriptions/{id} [get]
func (s *Server) GetSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}

// @Summary      Cancel Subscription
// @Description  Cancel now, or at the end of the current period
// @Tags         subscriptions
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id       path  string                                        true   "Subscription ID"
// @Param        request  body  subscriptiondomain.CancelSubscriptionRequest  false  "Cancel options"
// @Success      200  {object}  DataResponse
// @Router       /api/subscriptions/{id}/cancel [post]
func (s *Server) CancelSubscription(c *gin.Context) {
	var req subscriptiondomain.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, sub)
}
