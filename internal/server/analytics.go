package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/railzwaylabs/billingcore/internal/analytics/domain"
)

// @Summary      List analytics events
// @Tags         analytics
// @Produce      json
// @Security     ApiKeyAuth
// @Param        type_prefix  query  string  false  "Event type prefix, e.g. webhook:"
// @Param        customer_id  query  string  false  "Customer ID"
// @Param        limit        query  int     false  "Limit"
// @Success      200  {object}  ListResponse
// @Router       /api/analytics/events [get]
func (s *Server) ListAnalyticsEvents(c *gin.Context) {
	req := analyticsdomain.ListEventsRequest{TypePrefix: strings.TrimSpace(c.Query("type_prefix"))}

	customerID, err := optionalQueryID(c, "customer_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if customerID != 0 {
		req.CustomerID = &customerID
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		req.Limit = limit
	}

	events, err := s.analyticsSvc.ListEvents(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, events, nil)
}

// @Summary      Revenue summary
// @Tags         analytics
// @Produce      json
// @Security     ApiKeyAuth
// @Param        from  query  string  false  "RFC3339 start, defaults to 30 days ago"
// @Param        to    query  string  false  "RFC3339 end, defaults to now"
// @Success      200  {object}  DataResponse
// @Router       /api/analytics/revenue [get]
func (s *Server) GetRevenueSummary(c *gin.Context) {
	var req analyticsdomain.RevenueRequest
	if !bindWindow(c, &req.From, &req.To) {
		return
	}

	summary, err := s.analyticsSvc.RevenueSummary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, summary)
}

// @Summary      Export analytics events
// @Tags         analytics
// @Produce      text/csv,application/json
// @Security     ApiKeyAuth
// @Param        format       query  string  false  "csv (default) or json"
// @Param        type_prefix  query  string  false  "Event type prefix"
// @Param        from         query  string  false  "RFC3339 start, defaults to 30 days ago"
// @Param        to           query  string  false  "RFC3339 end, defaults to now"
// @Success      200
// @Router       /api/analytics/events/export [get]
func (s *Server) ExportAnalyticsEvents(c *gin.Context) {
	req := analyticsdomain.ExportRequest{
		Format:     analyticsdomain.ExportFormat(strings.ToLower(strings.TrimSpace(c.Query("format")))),
		TypePrefix: strings.TrimSpace(c.Query("type_prefix")),
	}
	if !bindWindow(c, &req.From, &req.To) {
		return
	}

	result, err := s.analyticsSvc.Export(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	contentType := "text/csv"
	if result.Format == analyticsdomain.ExportFormatJSON {
		contentType = "application/json"
	}
	c.Header("Content-Disposition", "attachment; filename=analytics_events."+string(result.Format))
	c.Header("X-Checksum-SHA256", result.Checksum)
	c.Header("X-Record-Count", strconv.Itoa(result.Count))
	c.Data(http.StatusOK, contentType, result.Data)
}

func bindWindow(c *gin.Context, from, to *time.Time) bool {
	for name, target := range map[string]*time.Time{"from": from, "to": to} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError(name, "invalid_time", name+" must be RFC3339"))
			return false
		}
		*target = parsed
	}
	return true
}
