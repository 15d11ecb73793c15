package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// maxResponseBytes caps how much of a gateway response body is read.
const maxResponseBytes = 1 << 20

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WhatsAppSender delivers messages through a Twilio-compatible HTTP
// gateway: a form POST with To/From/Body fields, whatsapp-prefixed
// addresses, and a message sid in the JSON response.
type WhatsAppSender struct {
	cfg        *config.WhatsAppConfig
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewWhatsAppSender creates a whatsapp sender with a default HTTP client.
func NewWhatsAppSender(cfg *config.WhatsAppConfig, logger zerolog.Logger) *WhatsAppSender {
	return NewWhatsAppSenderWithHTTP(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
}

// NewWhatsAppSenderWithHTTP creates a whatsapp sender with a custom HTTP
// client. This is used for testing.
func NewWhatsAppSenderWithHTTP(cfg *config.WhatsAppConfig, httpClient HTTPClient, logger zerolog.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("channel", domain.ChannelWhatsApp.String()).Logger(),
	}
}

// Channel identifies the delivery surface.
func (s *WhatsAppSender) Channel() domain.Channel {
	return domain.ChannelWhatsApp
}

// Send transmits one message and returns the gateway's message sid.
func (s *WhatsAppSender) Send(ctx context.Context, out *domain.Outbound) (string, error) {
	if out.To == "" {
		return "", fmt.Errorf("whatsapp send requires a recipient: %w", opserrors.ErrMissingField)
	}

	form := url.Values{}
	form.Set("To", whatsappAddr(out.To))
	form.Set("From", whatsappAddr(s.cfg.From))
	form.Set("Body", out.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.authorize(req)

	s.logger.Debug().Str("to", out.To).Msg("sending whatsapp message")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("whatsapp gateway unreachable: %v: %w", err, opserrors.ErrSendTransient)
	}
	defer resp.Body.Close() //nolint:errcheck // HTTP response body close

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read whatsapp response: %v: %w", err, opserrors.ErrSendTransient)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return messageSID(body), nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("whatsapp gateway returned status %d: %w", resp.StatusCode, opserrors.ErrSendTransient)
	default:
		return "", fmt.Errorf("whatsapp gateway returned status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(body)), opserrors.ErrChannelSend)
	}
}

// authorize sets gateway credentials on the request. Keys of the form
// "account_sid:auth_token" become basic auth; anything else rides as a
// bearer token.
func (s *WhatsAppSender) authorize(req *http.Request) {
	if s.cfg.APIKey == "" {
		return
	}
	if user, pass, ok := strings.Cut(s.cfg.APIKey, ":"); ok {
		req.SetBasicAuth(user, pass)
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
}

// whatsappAddr prefixes a number with the whatsapp: scheme the gateway
// expects, leaving already-prefixed values alone.
func whatsappAddr(number string) string {
	if number == "" || strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// messageSID pulls the message sid out of a gateway response body.
func messageSID(body []byte) string {
	var payload struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.SID == "" {
		return "unknown"
	}
	return payload.SID
}

// Interface compliance check
var _ Sender = (*WhatsAppSender)(nil)
