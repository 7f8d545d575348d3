package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.Method+" "+r.URL.Path)
	}))
}

func TestGatewayRoutes(t *testing.T) {
	rumble := echo("rumble")
	t.Cleanup(rumble.Close)
	spectator := echo("spectator")
	t.Cleanup(spectator.Close)

	mux, err := newMux(rumble.URL, spectator.URL)
	require.NoError(t, err)
	gw := httptest.NewServer(withCORS(mux))
	t.Cleanup(gw.Close)

	cases := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/rumble/v1/slots/0/bets", "rumble POST /v1/slots/0/bets"},
		{http.MethodGet, "/api/spectate/v1/slots", "spectator GET /v1/slots"},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, gw.URL+tc.path, nil)
		require.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		assert.Equal(t, tc.want, string(body))
		assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	}

	req, _ := http.NewRequest(http.MethodOptions, gw.URL+"/api/rumble/v1/queue", nil)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}
