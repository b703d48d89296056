package draftapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/domain/entity"
)

// Client is the typed boundary to the remote draft/tax endpoints. It
// never retries: retry policy belongs to the caller (the manual save
// button, or the next autosave cycle). Timeout is the injected
// http.Client's concern.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a client. A nil httpClient gets a default with a 15 s
// timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// CreateDraft POST /drafts. The response envelope carries the assigned
// stable identifier.
func (c *Client) CreateDraft(ctx context.Context, draft *entity.InvoiceDraft) (*entity.DraftEnvelope, error) {
	var out dto.DraftEnvelopeResponse
	err := c.do(ctx, "create draft", http.MethodPost, "/api/drafts", dto.SaveDraftRequest{Draft: *draft}, &out)
	if err != nil {
		return nil, err
	}
	return envelopeFromResponse(&out), nil
}

// UpdateDraft PATCH /drafts/{id}.
func (c *Client) UpdateDraft(ctx context.Context, id string, draft *entity.InvoiceDraft) (*entity.DraftEnvelope, error) {
	var out dto.DraftEnvelopeResponse
	err := c.do(ctx, "update draft", http.MethodPatch, "/api/drafts/"+url.PathEscape(id), dto.SaveDraftRequest{Draft: *draft}, &out)
	if err != nil {
		return nil, err
	}
	return envelopeFromResponse(&out), nil
}

// GetDraft GET /drafts/{id}.
func (c *Client) GetDraft(ctx context.Context, id string) (*entity.DraftEnvelope, error) {
	var out dto.DraftEnvelopeResponse
	err := c.do(ctx, "get draft", http.MethodGet, "/api/drafts/"+url.PathEscape(id), nil, &out)
	if err != nil {
		return nil, err
	}
	return envelopeFromResponse(&out), nil
}

// DeleteDraft DELETE /drafts/{id}.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, "delete draft", http.MethodDelete, "/api/drafts/"+url.PathEscape(id), nil, nil)
}

// SubmitDraft POST /drafts/{id}/submit. Irreversible.
func (c *Client) SubmitDraft(ctx context.Context, id string) (*dto.SubmitDraftResponse, error) {
	var out dto.SubmitDraftResponse
	err := c.do(ctx, "submit draft", http.MethodPost, "/api/drafts/"+url.PathEscape(id)+"/submit", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDrafts GET /drafts (paginated).
func (c *Client) ListDrafts(ctx context.Context, limit, offset int) (*dto.DraftListResponse, error) {
	var out dto.DraftListResponse
	path := fmt.Sprintf("/api/drafts?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, "list drafts", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CalculateTax POST /invoices/calculate-tax. Stateless authoritative
// computation.
func (c *Client) CalculateTax(ctx context.Context, in dto.CalculateTaxRequest) (*dto.CalculateTaxResponse, error) {
	var out dto.CalculateTaxResponse
	if err := c.do(ctx, "calculate tax", http.MethodPost, "/api/invoices/calculate-tax", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCustomer GET /customers/{id}. Collaborator lookup used when merging
// customer data into the draft's buyer party.
func (c *Client) GetCustomer(ctx context.Context, id string) (*dto.CustomerResponse, error) {
	var out dto.CustomerResponse
	err := c.do(ctx, "get customer", http.MethodGet, "/api/customers/"+url.PathEscape(id), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("draftapi: %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("draftapi: %s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		// Server-side failures are retryable like network failures: the
		// payload was not judged, the write simply did not land.
		return &TransportError{Op: op, Err: fmt.Errorf("server error: %s", resp.Status)}
	}
	if resp.StatusCode >= 400 {
		rejection := &RemoteRejectionError{Op: op, StatusCode: resp.StatusCode}
		var errBody dto.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
			rejection.Code = errBody.Code
			rejection.Message = errBody.Message
		}
		return rejection
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("draftapi: %s: decode response: %w", op, err)
	}
	return nil
}

func envelopeFromResponse(in *dto.DraftEnvelopeResponse) *entity.DraftEnvelope {
	return &entity.DraftEnvelope{
		ID:        in.ID,
		OwnerID:   in.OwnerID,
		Draft:     in.Draft,
		UpdatedAt: in.UpdatedAt,
	}
}
