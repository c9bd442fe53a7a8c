// Package jira implements a minimal REST client for the remote tracker.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// maxRetries bounds re-executions of a call that keeps failing with a
// server error, after the initial attempt.
const maxRetries = 3

// Config holds everything needed to talk to one Jira instance.
type Config struct {
	BaseURL    string
	Login      string
	Password   string
	AuthMode   string
	APIVersion int
	Timeout    time.Duration
	ProxyURL   string
}

// Client is an authenticated HTTP client bound to one Jira instance.
type Client struct {
	baseURL    *url.URL
	login      string
	password   string
	authMode   string
	apiVersion int
	httpClient *http.Client
}

// NewClient builds a client from cfg. Bearer auth wraps the transport
// in an oauth2 token source; basic auth sets credentials per request.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("jira: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("jira: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("jira: base URL must include scheme and host")
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("jira: parse proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout, Transport: transport}
	if cfg.AuthMode == "bearer" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Password})
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: src,
				Base:   transport,
			},
		}
	}

	apiVersion := cfg.APIVersion
	if apiVersion == 0 {
		apiVersion = 2
	}

	return &Client{
		baseURL:    base,
		login:      cfg.Login,
		password:   cfg.Password,
		authMode:   cfg.AuthMode,
		apiVersion: apiVersion,
		httpClient: httpClient,
	}, nil
}

// apiPath prefixes a resource path with the versioned REST root.
func (c *Client) apiPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/rest/api/%d", c.apiVersion) + fmt.Sprintf(format, args...)
}

// newRequest builds a request against the client's base URL. A non-nil
// body is JSON-encoded.
func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("jira: marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("jira: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.authMode != "bearer" {
		req.SetBasicAuth(c.login, c.password)
	}
	return req, nil
}

// do executes req, retrying server errors, and decodes a JSON response
// into out when out is non-nil. 200, 201 and 204 are success; 204
// carries no body and leaves out untouched.
func (c *Client) do(req *http.Request, out interface{}) error {
	var (
		resp *http.Response
		err  error
	)

	var bodyBytes []byte
	if req.Body != nil {
		bodyBytes, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return fmt.Errorf("jira: read request body: %w", err)
		}
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return &APIError{
				Method: req.Method,
				Path:   req.URL.Path,
				Body:   err.Error(),
			}
		}
		if resp.StatusCode != http.StatusInternalServerError || attempt == maxRetries {
			break
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("jira: decode %s %s response: %w", req.Method, req.URL.Path, err)
		}
		return nil
	case http.StatusNoContent:
		return nil
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.URL.Path,
			Body:       string(raw),
		}
	}
}

// Download streams the resource at rawURL into the file at dest. The
// URL comes from attachment metadata and is already absolute.
func (c *Client) Download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("jira: new download request: %w", err)
	}
	if c.authMode != "bearer" {
		req.SetBasicAuth(c.login, c.password)
	}

	var resp *http.Response
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return &APIError{Method: http.MethodGet, Path: rawURL, Body: err.Error()}
		}
		if resp.StatusCode != http.StatusInternalServerError || attempt == maxRetries {
			break
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusCreated, http.StatusNoContent:
		// Nothing to stream; an empty destination file is still created.
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       rawURL,
			Body:       string(raw),
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("jira: create %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("jira: write %s: %w", dest, err)
	}
	return nil
}

// upload posts one local file as a multipart attachment to path.
func (c *Client) upload(ctx context.Context, path, filePath, filename string, out interface{}) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("jira: open %s: %w", filePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("jira: multipart form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("jira: multipart copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("jira: multipart close: %w", err)
	}

	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), &buf)
	if err != nil {
		return fmt.Errorf("jira: new upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")
	if c.authMode != "bearer" {
		req.SetBasicAuth(c.login, c.password)
	}
	return c.do(req, out)
}
