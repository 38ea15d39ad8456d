package httpclient

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

	"go.uber.org/zap"

	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

const maxErrorBody = 4 << 10

// Observer receives timing for every backend call.
type Observer interface {
	ObserveBackendCall(backend, operation string, status int, duration time.Duration)
}

// UnauthorizedHook is invoked when a backend answers 401.
type UnauthorizedHook func(ctx context.Context, session *models.SessionContext)

// Options configures a Client.
type Options struct {
	Name           string
	BaseURL        string
	Timeout        time.Duration
	ActorHeader    string
	RoleHeader     string
	HTTPClient     *http.Client
	Observer       Observer
	OnUnauthorized UnauthorizedHook
	Logger         *zap.Logger
}

// Client issues JSON requests against one backend service.
type Client struct {
	name           string
	baseURL        string
	http           *http.Client
	stream         *http.Client
	actorHeader    string
	roleHeader     string
	observer       Observer
	onUnauthorized UnauthorizedHook
	logger         *zap.Logger
}

// Request describes one backend call.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      interface{}
	Headers   map[string]string
	Session   *models.SessionContext
	Operation string
}

// New constructs a Client with sane defaults.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.ActorHeader == "" {
		opts.ActorHeader = "X-User-Id"
	}
	if opts.RoleHeader == "" {
		opts.RoleHeader = "X-User-Role"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	// Streams stay open indefinitely; only the request context bounds them.
	stream := &http.Client{Transport: httpClient.Transport}
	return &Client{
		name:           opts.Name,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           httpClient,
		stream:         stream,
		actorHeader:    opts.ActorHeader,
		roleHeader:     opts.RoleHeader,
		observer:       opts.Observer,
		onUnauthorized: opts.OnUnauthorized,
		logger:         opts.Logger,
	}
}

// Name returns the backend label used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends the request and decodes a successful JSON response into out,
// which may be nil.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.send(ctx, c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, fmt.Sprintf("%s: read response", c.name))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapEnvelope(raw), out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, fmt.Sprintf("%s: decode response", c.name))
	}
	return nil
}

// Stream opens a long-lived request and returns the response body. The
// caller must close it.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	req.Headers["Accept"] = "text/event-stream"
	resp, err := c.send(ctx, c.stream, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) send(ctx context.Context, client *http.Client, req Request) (*http.Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := c.url(req.Path, req.Query)

	var body io.Reader
	if req.Body != nil {
		payload, err := encodeBody(req.Body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "encode request body")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build backend request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if s := req.Session; s != nil {
		if s.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+s.Token)
		}
		if s.ActorID != "" {
			httpReq.Header.Set(c.actorHeader, s.ActorID)
		}
		if s.Role != "" {
			httpReq.Header.Set(c.roleHeader, string(s.Role))
		}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	operation := req.Operation
	if operation == "" {
		operation = method + " " + req.Path
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		c.observe(operation, 0, duration)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, appErrors.Wrap(ctxErr, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, fmt.Sprintf("%s: request canceled", c.name))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, fmt.Sprintf("%s unavailable", c.name))
	}
	c.observe(operation, resp.StatusCode, duration)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close() //nolint:errcheck
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := upstreamMessage(raw)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	c.logger.Debug("backend rejected request",
		zap.String("backend", c.name),
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.String("message", message),
	)

	statusErr := &StatusError{StatusCode: resp.StatusCode, Body: raw}
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx, req.Session)
		}
		return nil, &appErrors.Error{Code: appErrors.ErrUnauthorized.Code, Status: http.StatusUnauthorized, Message: message, Err: statusErr}
	case http.StatusNotFound:
		return nil, &appErrors.Error{Code: appErrors.ErrNotFound.Code, Status: http.StatusNotFound, Message: message, Err: statusErr}
	default:
		return nil, &appErrors.Error{Code: appErrors.ErrUpstreamRejected.Code, Status: resp.StatusCode, Message: message, Err: statusErr}
	}
}

func (c *Client) observe(operation string, status int, duration time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackendCall(c.name, operation, status, duration)
}

func (c *Client) url(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// StatusError carries the raw upstream status and body.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// StatusCode extracts the upstream HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func encodeBody(body interface{}) ([]byte, error) {
	switch v := body.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// upstreamMessage extracts a human readable message from an error body,
// verbatim.
func upstreamMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) > 0 {
		var text string
		if err := json.Unmarshal(body.Error, &text); err == nil && text != "" {
			return text
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return body.Detail
}

// unwrapEnvelope strips a {"data": ...} wrapper when it is the only
// payload carrier.
func unwrapEnvelope(raw []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	data, ok := envelope["data"]
	if !ok {
		return raw
	}
	for key := range envelope {
		switch key {
		case "data", "message", "success", "status", "meta":
		default:
			return raw
		}
	}
	return data
}
