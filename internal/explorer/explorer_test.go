package explorer

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scamcheck/scamcheck/internal/circuitbreaker"
)

const testAddr = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func newFakeScan(t *testing.T, balanceWei string, txResult string, sourceResult string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "balance":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"` + balanceWei + `"}`))
		case "txlist":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":` + txResult + `}`))
		case "getsourcecode":
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":` + sourceResult + `}`))
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	}))
}

func TestAccount_ActiveAddress(t *testing.T) {
	srv := newFakeScan(t, "1500000000000000000", `[{"hash":"0xabc"}]`, "[]")
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	info, err := c.Account(context.Background(), "ETH", testAddr)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(1500000000000000000), info.BalanceWei)
	assert.InDelta(t, 1.5, info.BalanceNative, 1e-9)
	assert.Equal(t, 1, info.TxCount)
}

func TestAccount_EmptyAddress(t *testing.T) {
	srv := newFakeScan(t, "0", `[]`, "[]")
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	info, err := c.Account(context.Background(), "ETH", testAddr)
	require.NoError(t, err)

	assert.Zero(t, info.BalanceNative)
	assert.Zero(t, info.TxCount)
}

func TestAccount_TxlistErrorString(t *testing.T) {
	// Explorers return an error string in place of the tx array when the
	// key is rate limited. That must read as zero transactions, not a crash.
	srv := newFakeScan(t, "0", `"Max rate limit reached"`, "[]")
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	info, err := c.Account(context.Background(), "ETH", testAddr)
	require.NoError(t, err)
	assert.Zero(t, info.TxCount)
}

func TestAccount_NoAPIKey(t *testing.T) {
	c := &HTTPClient{HTTP: http.DefaultClient}
	_, err := c.Account(context.Background(), "ETH", testAddr)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestAccount_NonEVMAddress(t *testing.T) {
	c := &HTTPClient{APIKey: "test-key", HTTP: http.DefaultClient}
	_, err := c.Account(context.Background(), "ETH", "TJRabPrwbZy45sbavfcjinPJC18kjpRTv8")
	assert.Error(t, err)
}

func TestAccount_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	_, err := c.Account(context.Background(), "ETH", testAddr)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestContractSource_VerifiedWithFlags(t *testing.T) {
	source := `[{"SourceCode":"contract Token { mapping(address=>bool) blacklist; function mint(uint a) public {} function transferOwnership(address n) public {} }","CompilerVersion":"v0.8.19","LicenseType":"MIT"}]`
	srv := newFakeScan(t, "0", "[]", source)
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	info := c.ContractSource(context.Background(), "ethereum", testAddr)

	assert.True(t, info.Verified)
	assert.Equal(t, "v0.8.19", info.Compiler)
	assert.Equal(t, "MIT", info.License)
	assert.Equal(t, "ETH", info.ChainCode)
	assert.ElementsMatch(t, []string{"blacklist", "mint(", "transferownership"}, info.Flags)
	assert.Empty(t, info.ErrorMsg)
}

func TestContractSource_Unverified(t *testing.T) {
	srv := newFakeScan(t, "0", "[]", `[{"SourceCode":"","CompilerVersion":"","LicenseType":""}]`)
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	info := c.ContractSource(context.Background(), "BSC", testAddr)

	assert.False(t, info.Verified)
	assert.NotEmpty(t, info.Note)
	assert.Empty(t, info.Flags)
}

func TestContractSource_NeverErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), BaseOverride: srv.URL}
	info := c.ContractSource(context.Background(), "ETH", testAddr)

	assert.False(t, info.Verified)
	assert.NotEmpty(t, info.ErrorMsg)
}

func TestContractSource_MissingKey(t *testing.T) {
	c := &HTTPClient{HTTP: http.DefaultClient}
	info := c.ContractSource(context.Background(), "ETH", testAddr)

	assert.False(t, info.Verified)
	assert.Contains(t, info.ErrorMsg, "ETHERSCAN_API_KEY")
}

func TestContractSource_BadAddress(t *testing.T) {
	c := &HTTPClient{APIKey: "test-key", HTTP: http.DefaultClient}
	info := c.ContractSource(context.Background(), "ETH", "not-an-address")

	assert.False(t, info.Verified)
	assert.Contains(t, info.ErrorMsg, "Invalid")
}

func TestNormalizeChain(t *testing.T) {
	cases := map[string]string{
		"ethereum": "ETH",
		"ETH":      "ETH",
		"bsc":      "BSC",
		"binance":  "BSC",
		"matic":    "POLYGON",
		"arbitrum": "ARB",
		"optimism": "OPT",
		"ftm":      "FTM",
		"unknown":  "ETH",
		"":         "ETH",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeChain(in), "input %q", in)
	}
}

func TestAccount_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("action") {
		case "balance":
			_, _ = w.Write([]byte(`{"result":"1000000000000000000"}`))
		default:
			_, _ = w.Write([]byte(`{"result":[]}`))
		}
	}))
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), MaxAttempts: 3, BaseOverride: srv.URL}
	info, err := c.Account(context.Background(), "ETH", testAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000000000000000000), info.BalanceWei)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestAccount_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := &HTTPClient{APIKey: "test-key", HTTP: srv.Client(), MaxAttempts: 3, BaseOverride: srv.URL}
	_, err := c.Account(context.Background(), "ETH", testAddr)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAccount_CircuitShedsLoad(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &HTTPClient{
		APIKey:       "test-key",
		HTTP:         srv.Client(),
		Breaker:      circuitbreaker.New(1, time.Minute),
		BaseOverride: srv.URL,
	}

	_, err := c.Account(context.Background(), "ETH", testAddr)
	require.ErrorIs(t, err, ErrUnavailable)
	seen := calls.Load()

	// The circuit tripped, so the next lookup never reaches upstream.
	_, err = c.Account(context.Background(), "ETH", testAddr)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, seen, calls.Load())
}
