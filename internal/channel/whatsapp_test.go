package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/opsdesk/internal/config"
	"github.com/mrz1836/opsdesk/internal/domain"
	opserrors "github.com/mrz1836/opsdesk/internal/errors"
)

func testWhatsAppConfig(apiURL string) *config.WhatsAppConfig {
	return &config.WhatsAppConfig{
		APIURL: apiURL,
		APIKey: "AC001:secret",
		From:   "+14155238886",
	}
}

func TestWhatsAppSender_Send(t *testing.T) {
	var gotForm url.Values
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"sid": "SM123abc", "status": "queued"}`)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	ref, err := s.Send(context.Background(), &domain.Outbound{
		To:   "+34600111222",
		Body: "Your order shipped today.",
	})
	require.NoError(t, err)
	assert.Equal(t, "SM123abc", ref)

	assert.Equal(t, "whatsapp:+34600111222", gotForm.Get("To"))
	assert.Equal(t, "whatsapp:+14155238886", gotForm.Get("From"))
	assert.Equal(t, "Your order shipped today.", gotForm.Get("Body"))
	assert.Equal(t, "AC001", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestWhatsAppSender_BearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"sid": "SM1"}`)
	}))
	defer srv.Close()

	cfg := testWhatsAppConfig(srv.URL)
	cfg.APIKey = "single-token"
	s := NewWhatsAppSenderWithHTTP(cfg, srv.Client(), testLogger())

	_, err := s.Send(context.Background(), &domain.Outbound{To: "+1555", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer single-token", gotAuth)
}

func TestWhatsAppSender_AlreadyPrefixedRecipient(t *testing.T) {
	var gotTo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("To")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"sid": "SM1"}`)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	_, err := s.Send(context.Background(), &domain.Outbound{To: "whatsapp:+1555", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+1555", gotTo)
}

func TestWhatsAppSender_MissingSidFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	ref, err := s.Send(context.Background(), &domain.Outbound{To: "+1555", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "unknown", ref)
}

func TestWhatsAppSender_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	_, err := s.Send(context.Background(), &domain.Outbound{To: "+1555", Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, opserrors.ErrSendTransient)
}

func TestWhatsAppSender_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	_, err := s.Send(context.Background(), &domain.Outbound{To: "+1555", Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, opserrors.ErrSendTransient)
}

func TestWhatsAppSender_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprint(w, `{"message": "invalid to number"}`)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	_, err := s.Send(context.Background(), &domain.Outbound{To: "not-a-number", Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, opserrors.ErrChannelSend)
	assert.NotErrorIs(t, err, opserrors.ErrSendTransient)
	assert.Contains(t, err.Error(), "invalid to number")
}

func TestWhatsAppSender_GatewayDownIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	srv.Close()

	s := NewWhatsAppSenderWithHTTP(
		testWhatsAppConfig(srv.URL),
		&http.Client{Timeout: time.Second},
		testLogger(),
	)

	_, err := s.Send(context.Background(), &domain.Outbound{To: "+1555", Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, opserrors.ErrSendTransient)
}

func TestWhatsAppSender_MissingRecipient(t *testing.T) {
	s := NewWhatsAppSender(testWhatsAppConfig("http://unused.invalid"), testLogger())

	_, err := s.Send(context.Background(), &domain.Outbound{Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, opserrors.ErrMissingField)
}

func TestWhatsAppSender_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewWhatsAppSenderWithHTTP(testWhatsAppConfig(srv.URL), srv.Client(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Send(ctx, &domain.Outbound{To: "+1555", Body: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
