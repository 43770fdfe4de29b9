package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcast/internal/engine"
	"groupcast/internal/errors"
)

func newTestClient(baseURL string) *Client {
	return NewClient(ClientOptions{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		SessionName: "default",
		Timeout:     5 * time.Second,
	})
}

func TestSendTextSuccess(t *testing.T) {
	var gotReq sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sendText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(SendMessageResponse{MessageID: "msg-1", Status: "sent"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.SendText(context.Background(), "123@g.us", "hello")
	require.NoError(t, err)

	assert.Equal(t, "msg-1", resp.MessageID)
	assert.Equal(t, "123@g.us", gotReq.ChatID)
	assert.Equal(t, "hello", gotReq.Text)
	assert.Equal(t, "default", gotReq.Session)
}

func TestSendTextGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(SendMessageResponse{Error: "session not working"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SendText(context.Background(), "123@g.us", "hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeWhatsAppAPI, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err), "5xx gateway errors are retryable")
}

func TestSendTextUnreachableGateway(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.SendText(context.Background(), "123@g.us", "hello")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSendFailed, errors.GetCode(err))
}

func groupListServer(t *testing.T, groups []Group) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/default/groups":
			json.NewEncoder(w).Encode(groups)
		case "/api/sendText":
			json.NewEncoder(w).Encode(SendMessageResponse{MessageID: "msg-1", Status: "sent"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestResolveGroup(t *testing.T) {
	srv := groupListServer(t, []Group{
		{JID: "111@g.us", Name: "Release Crew"},
		{JID: "222@g.us", Name: "release crew"},
		{JID: "333@g.us", Name: "Ops Room"},
	})
	defer srv.Close()

	client := newTestClient(srv.URL)

	t.Run("exact match wins over case-insensitive", func(t *testing.T) {
		group, err := client.ResolveGroup(context.Background(), "release crew")
		require.NoError(t, err)
		assert.Equal(t, "222@g.us", group.ID)
	})

	t.Run("case-insensitive fallback", func(t *testing.T) {
		group, err := client.ResolveGroup(context.Background(), "ops room")
		require.NoError(t, err)
		assert.Equal(t, "333@g.us", group.ID)
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := client.ResolveGroup(context.Background(), "Nonexistent")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeGroupNotFound, errors.GetCode(err))
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := client.ResolveGroup(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetCode(err))
	})
}

func TestSendResolvesNameWhenJIDMissing(t *testing.T) {
	srv := groupListServer(t, []Group{{JID: "333@g.us", Name: "Ops Room"}})
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.Send(context.Background(), engine.SendTarget{Name: "Ops Room"}, "hello")
	require.NoError(t, err)

	assert.Equal(t, "333@g.us", result.Group.ID)
	assert.Equal(t, "Ops Room", result.Group.Name)
}

func TestSendUsesJIDDirectly(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/sendText", r.URL.Path, "a jid target must not trigger group resolution")
		json.NewEncoder(w).Encode(SendMessageResponse{MessageID: "msg-1", Status: "sent"})
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	result, err := client.Send(context.Background(), engine.SendTarget{JID: "123@g.us", Name: "ignored"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "123@g.us", result.Group.ID)
}

func TestResilientClientOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SendMessageResponse{Error: "boom"})
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	rc := NewResilientClient(newTestClient(srv.URL), logger)

	target := engine.SendTarget{JID: "123@g.us"}
	for i := 0; i < 10; i++ {
		_, err := rc.Send(context.Background(), target, "hello")
		require.Error(t, err)
	}

	// Once open, calls fail fast without reaching the gateway
	_, err := rc.Send(context.Background(), target, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
}
