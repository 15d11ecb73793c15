package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

// base64LineLength is the maximum encoded line length in MIME bodies.
const base64LineLength = 76

// sendMail is swapped in tests to capture the wire payload without a
// live SMTP server.
//
//nolint:gochecknoglobals // Required for test mocking
var sendMail = smtp.SendMail

// EmailSender delivers email drafts over SMTP with PLAIN auth. The MIME
// message is built by hand: a text/plain part plus base64 attachment
// parts under multipart/mixed when the draft carries attachments.
type EmailSender struct {
	cfg    *config.EmailConfig
	now    func() time.Time
	logger zerolog.Logger
}

// NewEmailSender creates an email sender from SMTP configuration.
func NewEmailSender(cfg *config.EmailConfig, logger zerolog.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("channel", domain.ChannelEmail.String()).Logger(),
	}
}

// Channel identifies the delivery surface.
func (s *EmailSender) Channel() domain.Channel {
	return domain.ChannelEmail
}

// Send transmits one email and returns the generated message id.
func (s *EmailSender) Send(ctx context.Context, out *domain.Outbound) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if out.To == "" {
		return "", fmt.Errorf("email send requires a recipient: %w", opserrors.ErrMissingField)
	}

	from := s.cfg.FromAddress()
	msgID := generateMessageID(from)
	payload, err := buildMIMEMessage(from, out, msgID, s.now(), s.decodeAttachments(out.Attachments))
	if err != nil {
		return "", fmt.Errorf("build mime message: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)

	s.logger.Debug().
		Str("to", out.To).
		Str("smtp_addr", addr).
		Int("attachments", len(out.Attachments)).
		Msg("sending email")

	if err := sendMail(addr, auth, from, []string{out.To}, payload); err != nil {
		return "", classifySMTPError(err)
	}

	return msgID, nil
}

// mimeAttachment is a decoded, ready-to-encode attachment.
type mimeAttachment struct {
	filename string
	mimeType string
	data     []byte
}

// decodeAttachments validates the base64 payloads. Undecodable or empty
// attachments are dropped with a warning; the message still goes out.
func (s *EmailSender) decodeAttachments(atts []domain.Attachment) []mimeAttachment {
	decoded := make([]mimeAttachment, 0, len(atts))
	for _, att := range atts {
		if att.ContentBase64 == "" {
			s.logger.Warn().Str("filename", att.Filename).Msg("skipping empty attachment")
			continue
		}

		data, err := base64.StdEncoding.DecodeString(att.ContentBase64)
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", att.Filename).Msg("skipping undecodable attachment")
			continue
		}

		mimeType := att.MIMEType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		filename := att.Filename
		if filename == "" {
			filename = "attachment.bin"
		}

		decoded = append(decoded, mimeAttachment{filename: filename, mimeType: mimeType, data: data})
	}
	return decoded
}

// buildMIMEMessage assembles the full RFC 5322 message bytes.
func buildMIMEMessage(from string, out *domain.Outbound, msgID string, date time.Time, atts []mimeAttachment) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}

	header("From", from)
	header("To", out.To)
	header("Subject", mime.QEncoding.Encode("utf-8", out.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", msgID)
	if out.InReplyTo != "" {
		header("In-Reply-To", out.InReplyTo)
		header("References", out.InReplyTo)
	}
	header("MIME-Version", "1.0")

	if len(atts) == 0 {
		header("Content-Type", "text/plain; charset=utf-8")
		header("Content-Transfer-Encoding", "8bit")
		buf.WriteString("\r\n")
		buf.WriteString(out.Body)
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header("Content-Type", `multipart/mixed; boundary="`+mw.Boundary()+`"`)
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textHeader.Set("Content-Transfer-Encoding", "8bit")
	textPart, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := textPart.Write([]byte(out.Body)); err != nil {
		return nil, err
	}

	for _, att := range atts {
		partHeader := textproto.MIMEHeader{}
		partHeader.Set("Content-Type", att.mimeType)
		partHeader.Set("Content-Transfer-Encoding", "base64")
		partHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.filename))

		part, err := mw.CreatePart(partHeader)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(encodeBase64Wrapped(att.data)); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeBase64Wrapped encodes data as base64 broken into MIME-safe lines.
func encodeBase64Wrapped(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var b bytes.Buffer
	for len(encoded) > base64LineLength {
		b.WriteString(encoded[:base64LineLength])
		b.WriteString("\r\n")
		encoded = encoded[base64LineLength:]
	}
	b.WriteString(encoded)
	return b.Bytes()
}

// generateMessageID builds a unique Message-ID under the sender's domain.
func generateMessageID(from string) string {
	host := "opsdesk.local"
	if _, after, ok := strings.Cut(from, "@"); ok && after != "" {
		host = after
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}

// classifySMTPError splits SMTP failures into transient and permanent.
// 4xx codes and connection failures are worth retrying; 5xx codes mean
// the server rejected the message for good, with bad credentials called
// out separately so the draft archives under an auth slug.
func classifySMTPError(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 535:
			return fmt.Errorf("smtp authentication rejected: %v: %w", protoErr.Msg, opserrors.ErrAuthFailed)
		case protoErr.Code >= 500:
			return fmt.Errorf("smtp rejected message with code %d: %v: %w", protoErr.Code, protoErr.Msg, opserrors.ErrChannelSend)
		}
		return fmt.Errorf("smtp temporary failure %d: %v: %w", protoErr.Code, protoErr.Msg, opserrors.ErrSendTransient)
	}
	return fmt.Errorf("smtp connection failed: %v: %w", err, opserrors.ErrSendTransient)
}

// Interface compliance check
var _ Sender = (*EmailSender)(nil)
