package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"divvy/internal/core"
)

// HTTPExtractor calls an external extraction service. The service receives
// the receipt metadata and responds with the structured fields.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPExtractor(baseURL string) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type extractRequest struct {
	ID       string `json:"id"`
	TripID   string `json:"trip_id"`
	FileName string `json:"file_name"`
}

type extractResponse struct {
	Vendor        string `json:"vendor"`
	SubtotalCents int64  `json:"subtotal_cents"`
	TaxCents      int64  `json:"tax_cents"`
	TipCents      int64  `json:"tip_cents"`
	Items         []struct {
		Description string `json:"description"`
		AmountCents int64  `json:"amount_cents"`
	} `json:"items"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, r *core.Receipt) (*Extraction, error) {
	body, err := json.Marshal(extractRequest{
		ID:       r.ID,
		TripID:   r.TripID,
		FileName: r.FileName,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build extract request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call extractor: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The service saw the receipt but cannot read it. Permanent.
		return nil, ErrUnreadableReceipt
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extractor returned %d: %s", resp.StatusCode, snippet)
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode extract response: %w", err)
	}

	result := &Extraction{
		Vendor:   parsed.Vendor,
		Subtotal: core.Money{Cents: parsed.SubtotalCents},
		Tax:      core.Money{Cents: parsed.TaxCents},
		Tip:      core.Money{Cents: parsed.TipCents},
	}
	for _, item := range parsed.Items {
		result.Items = append(result.Items, core.ReceiptItem{
			Description: item.Description,
			Amount:      core.Money{Cents: item.AmountCents},
		})
	}
	return result, nil
}
