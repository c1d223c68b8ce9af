package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemenko/dzver/internal/httpclient"
)

func TestGetSuccess(t *testing.T) {
	t.Parallel()

	var gotAuth, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0)
	body, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Empty(t, gotAuth)
	assert.Equal(t, httpclient.UserAgent, gotUA)
}

func TestGetWithBearerToken(t *testing.T) {
	t.Parallel()

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0, httpclient.WithBearerToken("secret"))
	_, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestGetNonSuccessStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "not found", status: http.StatusNotFound},
		{name: "redirect not followed as success", status: http.StatusTemporaryRedirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(0)
			_, err := client.Get(context.Background(), server.URL)
			require.Error(t, err)

			var httpErr *httpclient.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
		})
	}
}

func TestGetTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Close() // connection refused from here on

	client := httpclient.NewDefaultClient(0)
	_, err := client.Get(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, httpclient.IsNotFound(httpclient.NewHTTPError(http.StatusNotFound, "http://x", "404 Not Found")))
	assert.False(t, httpclient.IsNotFound(httpclient.NewHTTPError(http.StatusInternalServerError, "http://x", "500")))
	assert.False(t, httpclient.IsNotFound(context.Canceled))
}
