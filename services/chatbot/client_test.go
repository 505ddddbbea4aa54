package chatbot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"uxy/services/environment"
)

type recorded struct {
	method string
	path   string
	token  string
	body   map[string]any
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recorded{method: r.Method, path: r.URL.Path, token: r.URL.Query().Get("access_token")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &call.body))
		}
		calls = append(calls, call)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := New("page-token", Options{BaseURL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)
	return client
}

func TestProfilePayloads(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, `{"result":"success"}`)
	client := newClient(t, server)
	ctx := context.Background()

	require.NoError(t, client.InitGreeting(ctx))
	require.NoError(t, client.InitMenu(ctx, []any{map[string]any{"locale": "default"}}))
	require.NoError(t, client.InitDescription(ctx, "Hello there"))
	require.NoError(t, client.InitURLWhitelist(ctx, []string{"https://example.com"}))

	require.Len(t, *calls, 4)
	for _, call := range *calls {
		require.Equal(t, http.MethodPost, call.method)
		require.Equal(t, "/me/messenger_profile", call.path)
		require.Equal(t, "page-token", call.token)
	}

	got := *calls
	require.Equal(t, map[string]any{"payload": "GET_STARTED"}, got[0].body["get_started"])
	require.Equal(t, []any{map[string]any{"locale": "default"}}, got[1].body["persistent_menu"])
	require.Equal(t, []any{map[string]any{"locale": "default", "text": "Hello there"}}, got[2].body["greeting"])
	require.Equal(t, []any{"https://example.com"}, got[3].body["whitelisted_domains"])
}

func TestValidateToken(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, `{"id":"1","name":"Page"}`)
	require.NoError(t, newClient(t, server).ValidateToken(context.Background()))
	require.Equal(t, http.MethodGet, (*calls)[0].method)
	require.Equal(t, "/me", (*calls)[0].path)
}

func TestInvalidTokenMapsToCredentialError(t *testing.T) {
	server, _ := newServer(t, http.StatusBadRequest,
		`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`)

	err := newClient(t, server).ValidateToken(context.Background())
	require.ErrorIs(t, err, environment.ErrCredentialInvalid)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 190, apiErr.Code)
}

func TestTokenCheckRejectsAnyNon2xx(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
	}{
		{
			name:     "oauth exception with a generic code",
			status:   http.StatusBadRequest,
			response: `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":100}}`,
		},
		{
			name:     "forbidden without a body",
			status:   http.StatusForbidden,
			response: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, tt.status, tt.response)

			err := newClient(t, server).ValidateToken(context.Background())
			require.ErrorIs(t, err, environment.ErrCredentialInvalid)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestServerErrorIsNotCredentialError(t *testing.T) {
	server, _ := newServer(t, http.StatusInternalServerError, "boom")

	err := newClient(t, server).InitGreeting(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, environment.ErrCredentialInvalid)
	require.Contains(t, err.Error(), "boom")
}

func TestGuards(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, `{}`)
	client := newClient(t, server)

	require.Error(t, client.InitURLWhitelist(context.Background(), nil))
	require.Error(t, client.InitMenu(context.Background(), nil))
	require.Empty(t, *calls)

	_, err := New("  ", Options{})
	require.ErrorIs(t, err, environment.ErrCredentialInvalid)
}
