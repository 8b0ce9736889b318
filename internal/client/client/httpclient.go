package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPClient struct {
	baseURL     string
	http        *http.Client
	accessToken string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient talks to the server at baseURL, e.g. http://127.0.0.1:8080.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SetAccessToken(token string) {
	c.accessToken = token
}

func recordPath(entityType, entityID, suffix string) string {
	return "/api/v1/records/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID) + suffix
}

// do sends body as JSON and decodes a 2xx answer into out. Transport
// failures wrap ErrUnavailable, error answers become *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		RequestID string `json:"request_id"`
		Error     struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(b, &body); err != nil || body.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_ERROR", Message: strings.TrimSpace(string(b))}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Code:      body.Error.Code,
		Message:   body.Error.Message,
		Details:   body.Error.Details,
		RequestID: body.RequestID,
	}
}

func (c *HTTPClient) Login(ctx context.Context, userName string, password []byte) (string, error) {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	in := map[string]string{"userName": userName, "password": string(password)}
	if err := c.do(ctx, http.MethodPost, "/api/v1/login", in, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *HTTPClient) Canonical(ctx context.Context, entityType, entityID string) (*CanonicalPayload, error) {
	out := &CanonicalPayload{}
	if err := c.do(ctx, http.MethodGet, recordPath(entityType, entityID, "/canonical"), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) SubmitArtifact(ctx context.Context, entityType, entityID string, in ArtifactSubmission) (*SubmitResult, error) {
	out := &SubmitResult{}
	if err := c.do(ctx, http.MethodPost, recordPath(entityType, entityID, "/artifacts"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) ApprovalStatus(ctx context.Context, entityType, entityID string) (*ApprovalStatus, error) {
	out := &ApprovalStatus{}
	if err := c.do(ctx, http.MethodGet, recordPath(entityType, entityID, "/approval-status"), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) Esign(ctx context.Context, entityType, entityID string, in EsignRequest) (*EsignResult, error) {
	out := &EsignResult{}
	if err := c.do(ctx, http.MethodPost, recordPath(entityType, entityID, "/esign"), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) AddAttachment(ctx context.Context, entityType, entityID, kind, fileName string) (*Attachment, error) {
	var out struct {
		Attachment Attachment `json:"attachment"`
		UploadURL  string     `json:"uploadUrl"`
	}
	in := map[string]string{"kind": kind, "fileName": fileName}
	if err := c.do(ctx, http.MethodPost, recordPath(entityType, entityID, "/attachments"), in, &out); err != nil {
		return nil, err
	}
	out.Attachment.UploadURL = out.UploadURL
	return &out.Attachment, nil
}
