package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/webapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAPIURL(t *testing.T) {
	conf := bork.TestConfig()
	conf.WebAPI.Port = "8089"

	u, err := adminAPIURL(conf, SubCommandArgs{}, "/status")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8089/status", u)

	conf.WebAPI.Bind = "10.0.0.2"
	u, err = adminAPIURL(conf, SubCommandArgs{}, "/messages?status=fund_failed")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:8089/messages?status=fund_failed", u)

	u, err = adminAPIURL(conf, SubCommandArgs{RemoteAdminServer: "https://bot.example.com/admin/"}, "status")
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/admin/status", u)
}

func TestGetURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not-found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"counts":{"complete":3},"balance":"12.5","cursor":"1700"}`))
	}))
	defer srv.Close()

	var status webapi.StatusResponse
	require.NoError(t, getURL(srv.URL+"/status", &status))
	assert.Equal(t, 3, status.Counts[bork.StatusComplete])
	assert.Equal(t, "12.5", status.Balance.String())
	assert.Equal(t, "1700", status.Cursor)

	err := getURL(srv.URL+"/nope", &status)
	assert.ErrorContains(t, err, "404")
}

func TestMockCollaborators(t *testing.T) {
	conf := bork.TestConfig()
	c := collaborators(conf, ServerOptions{Mock: true})
	assert.Nil(t, c.Gate)

	utxos, err := c.Chain.ListUnspent(context.Background(), conf.Bork.WalletAddress)
	require.NoError(t, err)
	assert.Len(t, utxos, 3)

	c = collaborators(conf, ServerOptions{Mock: true, Confirm: true})
	assert.NotNil(t, c.Gate)
	assert.NoError(t, checkWallet(conf, ServerOptions{Mock: true}))
	assert.Error(t, checkWallet(conf, ServerOptions{}))
}
