// Package erp fetches business documents from the ERP backing the
// operation, an Odoo-style JSON-RPC API. The dispatcher uses it to
// attach invoice PDFs to approved emails before sending. Every failure
// here is survivable; callers are expected to log a warning and send
// without the attachment.
//
// Import rules:
//   - MAY import: internal/config, internal/constants, internal/domain,
//     internal/errors
//   - MUST NOT import: internal/vault, internal/engine, internal/dispatch,
//     internal/cli
package erp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/constants"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// maxResponseBytes caps how much of an ERP response is read. Rendered
// invoice PDFs run to a few hundred KB; anything past this is a broken
// endpoint, not a document.
const maxResponseBytes = 32 << 20

// postedState is the account.move state required before the report
// endpoint will render a final (non-draft) PDF.
const postedState = "posted"

// HTTPClient abstracts the HTTP client for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache holds the ERP session for the life of the process: the
// authenticated uid plus the cookie jar carrying the session cookie.
// It never expires in between; Reset forces a fresh login on the next
// request.
type Cache struct {
	mu  sync.Mutex
	uid int
	jar http.CookieJar
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	// cookiejar.New cannot fail with nil options.
	jar, _ := cookiejar.New(nil)
	return &Cache{jar: jar}
}

// UID returns the cached user id, zero when unauthenticated.
func (c *Cache) UID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid
}

// SetUID records the authenticated user id.
func (c *Cache) SetUID(uid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid = uid
}

// CookiesFor returns the session cookies to send with a request to u.
func (c *Cache) CookiesFor(u *url.URL) []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jar.Cookies(u)
}

// Store merges response cookies for u into the jar.
func (c *Cache) Store(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar.SetCookies(u, cookies)
}

// Reset drops the session so the next request authenticates again.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uid = 0
	jar, _ := cookiejar.New(nil)
	c.jar = jar
}

// Client talks to the ERP over JSON-RPC. It authenticates lazily on
// first use and keeps the session in its Cache.
type Client struct {
	cfg        *config.ERPConfig
	httpClient HTTPClient
	cache      *Cache
	logger     zerolog.Logger
	baseURL    string
	nextID     atomic.Int64
}

// NewClient creates an ERP client using a default HTTP client with the
// configured timeout.
func NewClient(cfg *config.ERPConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultERPTimeout
	}
	return NewClientWithHTTP(cfg, &http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP creates an ERP client with a custom HTTP client.
func NewClientWithHTTP(cfg *config.ERPConfig, httpClient HTTPClient, logger zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      NewCache(),
		logger:     logger.With().Str("component", "erp").Logger(),
		baseURL:    strings.TrimRight(cfg.URL, "/"),
	}
}

// Cache exposes the session cache, mainly so callers can Reset it.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Authenticate establishes an ERP session. It is a no-op when the cache
// already holds one; FetchInvoicePDF calls it implicitly.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.cache.UID() != 0 {
		return nil
	}

	params := map[string]any{
		"db":       c.cfg.Database,
		"login":    c.cfg.Username,
		"password": c.cfg.Password,
	}

	var result struct {
		UID int `json:"uid"`
	}
	if err := c.call(ctx, "/web/session/authenticate", params, &result); err != nil {
		return fmt.Errorf("erp login rejected: %v: %w", err, opserrors.ErrAuthFailed)
	}
	if result.UID == 0 {
		return fmt.Errorf("erp login returned no uid, check credentials: %w", opserrors.ErrAuthFailed)
	}

	c.cache.SetUID(result.UID)
	c.logger.Debug().Int("uid", result.UID).Msg("authenticated with erp")

	return nil
}

// FetchInvoicePDF reads the invoice record and renders its PDF through
// the report endpoint. The returned attachment is ready to embed in an
// outbound message.
func (c *Client) FetchInvoicePDF(ctx context.Context, invoiceID int) (*domain.Attachment, error) {
	if invoiceID <= 0 {
		return nil, fmt.Errorf("invalid invoice id %d: %w", invoiceID, opserrors.ErrDocumentNotFound)
	}

	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	name, state, err := c.readInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if state != postedState {
		return nil, fmt.Errorf("invoice %s is in state '%s', needs '%s': %w",
			name, state, postedState, opserrors.ErrDocumentNotReady)
	}

	pdf, err := c.downloadReport(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	filename := strings.ReplaceAll(name, "/", "_") + ".pdf"
	c.logger.Info().
		Str("invoice", name).
		Int("bytes", len(pdf)).
		Str("file", filename).
		Msg("fetched invoice pdf")

	return &domain.Attachment{
		Filename:      filename,
		ContentBase64: base64.StdEncoding.EncodeToString(pdf),
		MIMEType:      "application/pdf",
	}, nil
}

// readInvoice fetches the invoice number and workflow state.
func (c *Client) readInvoice(ctx context.Context, invoiceID int) (string, string, error) {
	params := map[string]any{
		"model":  "account.move",
		"method": "read",
		"args":   []any{[]int{invoiceID}},
		"kwargs": map[string]any{"fields": []string{"name", "state"}},
	}

	var records []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	if err := c.call(ctx, "/web/dataset/call_kw", params, &records); err != nil {
		return "", "", fmt.Errorf("read invoice %d: %w", invoiceID, err)
	}
	if len(records) == 0 {
		return "", "", fmt.Errorf("invoice %d: %w", invoiceID, opserrors.ErrDocumentNotFound)
	}

	return records[0].Name, records[0].State, nil
}

// downloadReport fetches the rendered PDF for the invoice.
func (c *Client) downloadReport(ctx context.Context, invoiceID int) ([]byte, error) {
	reportURL := fmt.Sprintf("%s/report/pdf/account.report_invoice/%d", c.baseURL, invoiceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("report for invoice %d: %w", invoiceID, opserrors.ErrDocumentNotFound)
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("report endpoint returned status %d for invoice %d", status, invoiceID)
	case len(body) == 0:
		return nil, fmt.Errorf("report for invoice %d: %w", invoiceID, opserrors.ErrEmptyResponse)
	}

	return body, nil
}

// rpcRequest is the JSON-RPC 2.0 envelope the ERP expects.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      int64  `json:"id"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call posts a JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, path string, params, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      c.nextID.Add(1),
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("erp endpoint %s returned status %d", path, status)
	}

	var resp rpcResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if resp.Error != nil {
		msg := resp.Error.Data.Message
		if msg == "" {
			msg = resp.Error.Message
		}
		return fmt.Errorf("rpc call to %s failed: %s", path, msg)
	}
	if out != nil && len(resp.Result) > 0 {
		if err = json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}

	return nil
}

// do sends the request with session cookies attached and folds response
// cookies back into the cache.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	for _, cookie := range c.cache.CookiesFor(req.URL) {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("erp request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // HTTP response body close

	c.cache.Store(req.URL, resp.Cookies())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read erp response: %w", err)
	}

	return body, resp.StatusCode, nil
}
