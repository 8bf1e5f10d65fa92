package server

import (
	"github.com/gin-gonic/gin"
	customerdomain "github.com/railzwaylabs/billingcore/internal/customer/domain"
)

// @Summary      Create Customer
// @Tags         customers
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        request body customerdomain.CreateCustomerRequest true "Create Customer Request"
// @Success      201  {object}  DataResponse
// @Router       /api/customers [post]
func (s *Server) CreateCustomer(c *gin.Context) {
	var req customerdomain.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	customer, err := s.customerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, customer)
}

// @Summary      Get Customer
// @Tags         customers
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  DataResponse
// @Router       /api/customers/{id} [get]
func (s *Server) GetCustomer(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	customer, err := s.customerSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, customer)
}
