/**
 * @description
 * This package provides a client for the MB Bank retail web portal. The portal
 * has no public API; every endpoint here is a JSON POST carrying a static Basic
 * authorization header plus a per-request refNo and device id.
 *
 * Key features:
 * - One method per portal endpoint used by the lookup service.
 * - Transport failures and non-2xx statuses become errors; portal result
 *   blocks are returned as-is for the caller to classify.
 */
package mbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
)

const (
	DefaultBaseURL = "https://online.mbbank.com.vn"

	// DefaultAuthToken is the static credential the portal's own web client sends.
	DefaultAuthToken = "Basic RU1CUkVUQUlMV0VCOlNEMjM0ZGZnMzQlI0BGR0AzNHNmc2RmNDU4NDNm"

	captchaPath     = "/api/retail-web-internetbankingms/getCaptchaImage"
	loginPath       = "/api/retail_web/internetbanking/v2.0/doLogin"
	inquiryPath     = "/api/retail_web/transfer/inquiryAccountName"
	keepAlivePath   = "/api/retail_web/internetbanking/getFavorBeneficiaryList"
	maxKeyMaterial  = 32 << 20
	maxJSONResponse = 4 << 20
)

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: portal http status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client is a client for the MB Bank portal.
type Client struct {
	baseURL         string
	authToken       string
	keyMaterialPath string
	httpClient      *http.Client
	logger          *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithKeyMaterialPath overrides the key material location.
func WithKeyMaterialPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.keyMaterialPath = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new portal client.
func NewClient(baseURL, authToken string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if authToken == "" {
		authToken = DefaultAuthToken
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCaptchaImage requests a new captcha challenge.
func (c *Client) GetCaptchaImage(ctx context.Context, req domain.CaptchaRequest) (*domain.CaptchaResponse, error) {
	var resp domain.CaptchaResponse
	if err := c.do(ctx, "getCaptchaImage", captchaPath, req.RefNo, req.DeviceIDCommon, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DoLogin submits the encoded credentials.
func (c *Client) DoLogin(ctx context.Context, req domain.LoginRequest, refNo, deviceID string) (*domain.LoginResponse, error) {
	var resp domain.LoginResponse
	if err := c.do(ctx, "doLogin", loginPath, refNo, deviceID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InquiryAccountName resolves the holder name of an account.
func (c *Client) InquiryAccountName(ctx context.Context, req domain.InquiryRequest) (*domain.InquiryResponse, error) {
	var resp domain.InquiryResponse
	if err := c.do(ctx, "inquiryAccountName", inquiryPath, req.RefNo, req.DeviceIDCommon, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetFavorBeneficiaryList is the cheap authenticated call used as a keep-alive probe.
func (c *Client) GetFavorBeneficiaryList(ctx context.Context, req domain.KeepAliveRequest) (*domain.KeepAliveResponse, error) {
	var resp domain.KeepAliveResponse
	if err := c.do(ctx, "getFavorBeneficiaryList", keepAlivePath, req.RefNo, req.DeviceIDCommon, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ErrNoKeyMaterialPath is returned by FetchKeyMaterial when no path was set.
// The portal's own bundle ships a WebAssembly module, which the script
// encoder cannot run, so there is no usable default.
var ErrNoKeyMaterialPath = errors.New("key material path not configured")

// FetchKeyMaterial downloads the encoder routine.
func (c *Client) FetchKeyMaterial(ctx context.Context) ([]byte, error) {
	if c.keyMaterialPath == "" {
		return nil, fmt.Errorf("fetchKeyMaterial: %w", ErrNoKeyMaterialPath)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.keyMaterialPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetchKeyMaterial: failed to create http request: %w", err)
	}
	c.logger.Debug("portal request", "component", "mbclient", "op", "fetchKeyMaterial")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchKeyMaterial: http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyMaterial))
	if err != nil {
		return nil, fmt.Errorf("fetchKeyMaterial: failed to read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: "fetchKeyMaterial", StatusCode: resp.StatusCode, Body: truncate(body)}
	}
	return body, nil
}

// do is a helper function to make JSON POST requests to the portal.
func (c *Client) do(ctx context.Context, op, path, refNo, deviceID string, body, target interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request body: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("%s: failed to create http request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", c.authToken)
	if refNo != "" {
		req.Header.Set("Refno", refNo)
		req.Header.Set("X-Request-Id", refNo)
	}
	if deviceID != "" {
		req.Header.Set("Deviceid", deviceID)
	}

	c.logger.Debug("portal request", "component", "mbclient", "op", op, "ref_no", refNo)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONResponse))
	if err != nil {
		return fmt.Errorf("%s: failed to read response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("portal returned non-success status", "component", "mbclient", "op", op, "status", resp.StatusCode)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(respBody)}
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("%s: failed to unmarshal response body: %w", op, err)
		}
	}
	return nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
