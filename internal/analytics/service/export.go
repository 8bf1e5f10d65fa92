package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/railzwaylabs/billingcore/internal/analytics/domain"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"go.uber.org/zap"
)

var exportHeader = []string{"timestamp", "id", "event_type", "customer_id", "event_data"}

type exportRecord struct {
	Timestamp  string         `json:"timestamp"`
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	CustomerID string         `json:"customer_id,omitempty"`
	EventData  map[string]any `json:"event_data,omitempty"`
}

// Export renders the org's events oldest first. At most MaxExportRows
// rows are written; callers page by narrowing the window.
func (s *Service) Export(ctx context.Context, req domain.ExportRequest) (*domain.ExportResult, error) {
	orgID, err := orgcontext.RequireOrgID(ctx)
	if err != nil {
		return nil, err
	}

	if req.Format == "" {
		req.Format = domain.ExportFormatCSV
	}
	if req.Format != domain.ExportFormatCSV && req.Format != domain.ExportFormatJSON {
		return nil, domain.ErrInvalidFormat
	}
	if req.To.IsZero() {
		req.To = s.clock.Now(ctx)
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-domain.DefaultWindow)
	}
	if !req.From.Before(req.To) {
		return nil, domain.ErrInvalidWindow
	}

	events, err := s.repo.ListRange(ctx, s.db, orgID, req.From, req.To, strings.TrimSpace(req.TypePrefix), domain.MaxExportRows)
	if err != nil {
		return nil, err
	}

	records := make([]exportRecord, 0, len(events))
	for _, event := range events {
		record := exportRecord{
			Timestamp: event.CreatedAt.UTC().Format(time.RFC3339),
			ID:        event.ID.String(),
			EventType: event.EventType,
			EventData: event.EventData,
		}
		if event.CustomerID != nil {
			record.CustomerID = event.CustomerID.String()
		}
		records = append(records, record)
	}

	var data []byte
	if req.Format == domain.ExportFormatJSON {
		data, err = json.Marshal(records)
	} else {
		data, err = renderCSV(records)
	}
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	s.log.Info("analytics export rendered",
		zap.String("org_id", orgID.String()),
		zap.String("format", string(req.Format)),
		zap.Int("count", len(records)))
	return &domain.ExportResult{
		Data:     data,
		Checksum: hex.EncodeToString(sum[:]),
		Format:   req.Format,
		Count:    len(records),
	}, nil
}

func renderCSV(records []exportRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, record := range records {
		payload := ""
		if len(record.EventData) > 0 {
			raw, err := json.Marshal(record.EventData)
			if err != nil {
				return nil, err
			}
			payload = string(raw)
		}
		if err := w.Write([]string{record.Timestamp, record.ID, record.EventType, record.CustomerID, payload}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
