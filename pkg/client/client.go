// Package client implements the favour store client: an authorized HTTP
// client for the remote favour store plus a caching layer with single-flight
// fetch de-duplication and optimistic local patches.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/favourlabs/favour/pkg/fault"
	"github.com/favourlabs/favour/pkg/favour"
)

// Remote is the wire contract with the remote favour store. The concrete
// implementation is APIClient; workflows and the cache depend on the
// interface so tests can substitute a fake remote.
type Remote interface {
	GetFavour(ctx context.Context, id, credential string) (favour.Favour, error)
	DeleteFavour(ctx context.Context, id, credential string) error
	RegisterEvidence(ctx context.Context, id, path, credential string) error
}

// APIClient talks to the remote favour store over HTTP.
//
// Timeouts are a property of the injected http.Client, not of this layer.
type APIClient struct {
	baseURL string
	httpc   *http.Client
}

// NewAPIClient creates a client for the store at baseURL. A nil httpc falls
// back to http.DefaultClient.
func NewAPIClient(baseURL string, httpc *http.Client) *APIClient {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &APIClient{baseURL: strings.TrimSuffix(baseURL, "/"), httpc: httpc}
}

// GetFavour fetches a favour record by id.
func (c *APIClient) GetFavour(ctx context.Context, id, credential string) (favour.Favour, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/favours/"+id, nil, credential)
	if err != nil {
		return favour.Favour{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return favour.Favour{}, fault.Wrap(fault.Transport, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return favour.Favour{}, statusError(resp)
	}
	var f favour.Favour
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return favour.Favour{}, fault.Wrap(fault.Transport, "malformed favour record", err)
	}
	return f, nil
}

// DeleteFavour removes a favour record.
func (c *APIClient) DeleteFavour(ctx context.Context, id, credential string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/v1/favours/"+id, nil, credential)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fault.Wrap(fault.Transport, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

// RegisterEvidence records the uploaded blob path as the favour's evidence.
func (c *APIClient) RegisterEvidence(ctx context.Context, id, path, credential string) error {
	body, err := json.Marshal(map[string]string{"evidence": path})
	if err != nil {
		return fmt.Errorf("encode evidence body: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/favours/"+id+"/evidence", bytes.NewReader(body), credential)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fault.Wrap(fault.Transport, "", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}
	return nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader, credential string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req, nil
}

// problemDetail mirrors the RFC 7807 body the store emits on errors.
type problemDetail struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// statusError maps an HTTP error response onto the fault taxonomy, carrying
// the body's structured detail when the store sent one.
func statusError(resp *http.Response) error {
	var problem problemDetail
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&problem)
	detail := problem.Detail
	if detail == "" {
		detail = problem.Title
	}

	code := fault.Transport
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = fault.Unauthorized
	case http.StatusForbidden:
		code = fault.Forbidden
	case http.StatusNotFound:
		code = fault.NotFound
	}
	return fault.Wrap(code, detail, fmt.Errorf("remote store returned %d", resp.StatusCode))
}
