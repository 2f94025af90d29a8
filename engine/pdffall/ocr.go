package pdffall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openlex/lexuk/engine/httpx"
	"github.com/openlex/lexuk/pkg/fn"
)

// OCRRequest asks the extraction service to process one PDF.
type OCRRequest struct {
	PDFURL          string `json:"pdf_url"`
	LegislationType string `json:"legislation_type"`
	Identifier      string `json:"identifier"`
}

// OCRResponse is the service's reply. ExtractedData is a JSON document
// whose shape depends on the legislation type.
type OCRResponse struct {
	Success       bool   `json:"success"`
	ExtractedData string `json:"extracted_data"`
	Error         string `json:"error"`
}

// ErrExtraction marks a reply where the service itself reported failure.
// These are not retried; the same scan fails the same way twice.
var ErrExtraction = errors.New("ocr extraction failed")

// OCRClient talks to the PDF extraction service. Extraction is slow, so
// the timeout is generous and retries are few.
type OCRClient struct {
	baseURL string
	client  *http.Client
	retry   fn.RetryOpts
}

func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &OCRClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		retry: fn.RetryOpts{
			MaxAttempts: 2,
			InitialWait: 5 * time.Second,
			MaxWait:     30 * time.Second,
			RetryIf: func(err error) bool {
				return !errors.Is(err, ErrExtraction)
			},
		},
	}
}

// Extract submits the request and returns the structured payload. A
// reply with success=false is an error carrying the service's message.
func (c *OCRClient) Extract(ctx context.Context, req OCRRequest) (*OCRResponse, error) {
	result := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[*OCRResponse] {
		return fn.FromPair(c.post(ctx, req))
	})
	return result.Unwrap()
}

func (c *OCRClient) post(ctx context.Context, req OCRRequest) (*OCRResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/extract"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &httpx.TransportError{URL: url, Wrapped: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpx.StatusError{URL: url, Status: resp.StatusCode}
	}

	var parsed OCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ocr decode: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("%w: %s", ErrExtraction, parsed.Error)
	}
	return &parsed, nil
}
