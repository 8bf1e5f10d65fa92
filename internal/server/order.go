package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/railzwaylabs/billingcore/internal/order/domain"
)

// @Summary      Create Order
// @Description  Price a plan for a customer and store a pending order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body orderdomain.CreateOrderRequest true "Create Order Request"
// @Success      201  {object}  DataResponse
// @Router       /api/orders [post]
func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CountryCode = countryFromRequest(c, req.CountryCode)

	order, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, order)
}

// @Summary      List Orders
// @Tags         orders
// @Produce      json
// @Security     ApiKeyAuth
// @Param        status       query  string  false  "Status"
// @Param        customer_id  query  string  false  "Customer ID"
// @Param        page_token   query  string  false  "Page Token"
// @Param        page_size    query  int     false  "Page Size"
// @Success      200  {object}  ListResponse
// @Router       /api/orders [get]
func (s *Server) ListOrders(c *gin.Context) {
	page, err := pageFromQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	customerID, err := optionalQueryID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orders, pageInfo, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrderRequest{
		Status:     orderdomain.Status(strings.TrimSpace(c.Query("status"))),
		CustomerID: customerID,
	}, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, orders, pageInfo)
}

// @Summary      Get Order
// @Tags         orders
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  DataResponse
// @Router       /api/orders/{id} [get]
func (s *Server) GetOrder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}

// @Summary      Update Order Status
// @Description  Move a pending order to a terminal status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id       path  string                           true  "Order ID"
// @Param        request  body  orderdomain.UpdateStatusRequest  true  "Status"
// @Success      200  {object}  DataResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /api/orders/{id}/status [patch]
func (s *Server) UpdateOrderStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req orderdomain.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}
