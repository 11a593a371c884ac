// internal/hosting/client.go
//
// Third-party hosting API client (custom domains).
//
// Context
// -------
// Custom domains are attached to one hosting project.  The provider exposes
// a REST API authenticated by a bearer token and scoped by an optional team
// id.  Four calls are used: add a domain to the project, ask the provider to
// verify ownership, remove it, and read its DNS configuration state.
//
// Workflow
// --------
//  1. NewClient builds a go-retryablehttp client that retries connection
//     failures, 429, and 5xx with exponential backoff.
//  2. Each call encodes JSON, sets the bearer token, and appends teamId.
//  3. Non-2xx answers are decoded as {"error":{"code","message"}} and
//     classified through apperr.FromHTTPStatus.
//
// Notes
// -----
//   - Transport failures after the last retry are NETWORK errors.
//   - The retry client logs through zap via a LeveledLogger adapter.
//   - Oxford commas, two spaces after periods.
package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/yanizio/sitebuilder/internal/apperr"
	"github.com/yanizio/sitebuilder/internal/metrics"
)

const DefaultBaseURL = "https://api.vercel.com"

// Config holds the provider credentials and project scope.
type Config struct {
	BaseURL   string
	Token     string
	TeamID    string
	ProjectID string
	Timeout   time.Duration
	RetryMax  int
}

// Verification is one DNS record the provider wants to see before it marks
// a domain verified.
type Verification struct {
	Type   string `json:"type"`
	Domain string `json:"domain"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ProjectDomain is the provider's view of a domain attached to the project.
type ProjectDomain struct {
	Name         string         `json:"name"`
	ApexName     string         `json:"apexName"`
	ProjectID    string         `json:"projectId"`
	Verified     bool           `json:"verified"`
	Verification []Verification `json:"verification,omitempty"`
}

// DomainConfig reports whether the domain's DNS points at the provider.
type DomainConfig struct {
	ConfiguredBy  *string `json:"configuredBy"`
	Misconfigured bool    `json:"misconfigured"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client talks to the hosting API.  Safe for concurrent use.
type Client struct {
	cfg  Config
	base *url.URL
	http *retryablehttp.Client
}

// NewClient validates cfg and builds the retrying HTTP client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" || cfg.ProjectID == "" {
		return nil, errors.New("hosting: token and project id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("hosting: base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = zapLogger{zap.S().Named("hosting")}
	// Hand the last response back so its status can be classified.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{cfg: cfg, base: base, http: rc}, nil
}

// AddDomain attaches domain to the configured project.
func (c *Client) AddDomain(ctx context.Context, domain string) (*ProjectDomain, error) {
	var out ProjectDomain
	p := "/v10/projects/" + url.PathEscape(c.cfg.ProjectID) + "/domains"
	if err := c.do(ctx, "add", http.MethodPost, p, map[string]string{"name": domain}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyDomain asks the provider to re-check ownership records.
func (c *Client) VerifyDomain(ctx context.Context, domain string) (*ProjectDomain, error) {
	var out ProjectDomain
	p := "/v9/projects/" + url.PathEscape(c.cfg.ProjectID) + "/domains/" + url.PathEscape(domain) + "/verify"
	if err := c.do(ctx, "verify", http.MethodPost, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveDomain detaches domain from the project.
func (c *Client) RemoveDomain(ctx context.Context, domain string) error {
	p := "/v9/projects/" + url.PathEscape(c.cfg.ProjectID) + "/domains/" + url.PathEscape(domain)
	return c.do(ctx, "remove", http.MethodDelete, p, nil, nil)
}

// Config reads the DNS configuration state of domain.
func (c *Client) Config(ctx context.Context, domain string) (*DomainConfig, error) {
	var out DomainConfig
	if err := c.do(ctx, "config", http.MethodGet, "/v6/domains/"+url.PathEscape(domain)+"/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	opName := "hosting." + op

	u := *c.base
	u.Path += path
	if c.cfg.TeamID != "" {
		u.RawQuery = url.Values{"teamId": {c.cfg.TeamID}}.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.KindServer, opName, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return apperr.Wrap(apperr.KindServer, opName, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.HostingRequestsTotal.WithLabelValues(op, "error").Inc()
		return apperr.Wrap(apperr.KindNetwork, opName, err)
	}
	defer resp.Body.Close()
	metrics.HostingRequestsTotal.WithLabelValues(op, statusClass(resp.StatusCode)).Inc()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindNetwork, opName, err)
	}

	if resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		zap.S().Warnw("hosting api error",
			"op", op, "status", resp.StatusCode, "code", ae.Error.Code)
		return apperr.FromHTTPStatus(opName, resp.StatusCode, ae.Error.Message)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.KindServer, opName, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// zapLogger adapts a sugared logger to retryablehttp.LeveledLogger.
type zapLogger struct{ s *zap.SugaredLogger }

func (l zapLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l zapLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l zapLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
