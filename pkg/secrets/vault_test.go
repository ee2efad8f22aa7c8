package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/hospitalintelligence/pkg/retry"
)

func fastRetry(attempts int) retry.Config {
	return retry.LinearConfig(attempts, time.Millisecond)
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "/secret/", "/hospital/alerts", 2)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/data/hospital/alerts", url)

	url, err = buildVaultURL("http://vault:8200", "kv", "hospital", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/kv/hospital", url)

	_, err = buildVaultURL("http://vault:8200", "", "hospital", 2)
	assert.Error(t, err)
}

func TestVaultClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/secret/data/hospital", r.URL.Path)
		assert.Equal(t, "root-token", r.Header.Get("X-Vault-Token"))
		assert.Equal(t, "ops", r.Header.Get("X-Vault-Namespace"))
		_, _ = w.Write([]byte(`{"data":{"data":{"ALERTS_TELEGRAM_BOT_TOKEN":"123:abc","alerts.max_retries":5,"debug":true,"tags":["a"]}}}`))
	}))
	defer server.Close()

	client, err := NewVaultClient(VaultConfig{Addr: server.URL, Token: "root-token", Namespace: "ops", Path: "hospital"}, fastRetry(1))
	require.NoError(t, err)

	values, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"ALERTS_TELEGRAM_BOT_TOKEN": "123:abc",
		"alerts.max_retries":        "5",
		"debug":                     "true",
		"tags":                      `["a"]`,
	}, values)
}

func TestVaultClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "sealed", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"k":"v"}}`))
	}))
	defer server.Close()

	client, err := NewVaultClient(VaultConfig{Addr: server.URL, Token: "t", Path: "p", KVVersion: 1}, fastRetry(3))
	require.NoError(t, err)

	values, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v", values["k"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestVaultClient_MissingData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client, err := NewVaultClient(VaultConfig{Addr: server.URL, Token: "t", Path: "p"}, fastRetry(1))
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	assert.Error(t, err)
}

func TestNewVaultClient_Incomplete(t *testing.T) {
	_, err := NewVaultClient(VaultConfig{Addr: "http://vault"}, fastRetry(1))
	assert.Error(t, err)
}
