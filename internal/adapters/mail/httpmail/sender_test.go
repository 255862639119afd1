package httpmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pet-clinical-history/internal/ports/mail"

	"github.com/stretchr/testify/require"
)

func TestSender_PostsMessage(t *testing.T) {
	var got sendRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s, err := NewSender(Config{BaseURL: srv.URL, APIKey: "k-1", From: "clinic@test"})
	require.NoError(t, err)

	err = s.Send(context.Background(), mail.Message{To: "owner@test", Subject: "Email Verification", Text: "ABC123"})
	require.NoError(t, err)
	require.Equal(t, "k-1", gotKey)
	require.Equal(t, "owner@test", got.To)
	require.Equal(t, "clinic@test", got.From)
	require.Equal(t, "ABC123", got.Text)
}

func TestSender_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	s, err := NewSender(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)

	err = s.Send(context.Background(), mail.Message{To: "a@b"})
	require.ErrorIs(t, err, ErrMailUpstream)
}

func TestSender_NotConfigured(t *testing.T) {
	s, err := NewSender(Config{})
	require.NoError(t, err)
	require.ErrorIs(t, s.Send(context.Background(), mail.Message{To: "a@b"}), ErrMailNotConfigured)
}
