package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithBaseURL(t *testing.T) {
	c, err := NewWithBaseURL("https://mail.example.com/api/", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://mail.example.com/api", c.BaseURL)
	assert.Equal(t, DefaultTimeout, c.HTTP.Timeout)

	c, err = NewWithBaseURL("", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, c.PostJSON(context.Background(), "/x", nil, map[string]string{}), ErrNoBaseURL)

	_, err = NewWithBaseURL("mail.example.com", 0)
	assert.Error(t, err)
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/v1/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			assert.JSONEq(t, `{"to":"a@b"}`, string(b))
			w.WriteHeader(http.StatusAccepted)
		case "/v1/busy":
			http.Error(w, "slow down", http.StatusTooManyRequests)
		default:
			http.Error(w, strings.Repeat("x", 2*maxErrorBody), http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c, err := NewWithBaseURL(srv.URL, 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.PostJSON(ctx, "v1/ok", map[string]string{"X-Api-Key": "secret"}, map[string]string{"to": "a@b"}))

	var se *StatusError
	err = c.PostJSON(ctx, "/v1/busy", nil, struct{}{})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.True(t, se.Temporary())
	assert.Equal(t, "slow down", se.Body)

	err = c.PostJSON(ctx, "/v1/bad", nil, struct{}{})
	require.True(t, errors.As(err, &se))
	assert.False(t, se.Temporary())
	assert.LessOrEqual(t, len(se.Body), maxErrorBody)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestWithTransport(t *testing.T) {
	called := false
	c, err := NewWithBaseURL("http://upstream.invalid", 0, WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("dial refused")
	})))
	require.NoError(t, err)

	err = c.PostJSON(context.Background(), "/v1/messages", nil, struct{}{})
	require.Error(t, err)
	assert.True(t, called)
}
