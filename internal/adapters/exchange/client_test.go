package exchange

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SyncTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/time", r.URL.Path)
		w.Write([]byte(`{"serverTime": 1700000000000}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", nil)

	err := c.SyncTime(t.Context())
	require.NoError(t, err)
}

func TestClient_DepositHistory_SignsAndSendsAPIKey(t *testing.T) {
	var gotQuery string
	var gotAPIKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAPIKey = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`[{"txId":"abc","coin":"USDT","network":"ERC20","amount":"10.104000","status":1,"address":"0xabc","insertTime":1700000000000,"confirmTimes":12}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "my-key", "my-secret", nil)

	deposits, err := c.DepositHistory(t.Context(), 1700000000000, 1700000300000, 200)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, "abc", deposits[0].TxID)
	assert.Equal(t, "my-key", gotAPIKey)
	assert.True(t, strings.Contains(gotQuery, "signature="))
	assert.True(t, strings.Contains(gotQuery, "startTime=1700000000000"))
}

func TestClient_DepositHistory_PropagatesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"msg":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", nil)

	_, err := c.DepositHistory(t.Context(), 0, 1, 10)
	assert.Error(t, err)
}

func TestSignedQuery_IsLexicographicallyOrdered(t *testing.T) {
	params := url.Values{}
	params.Set("timestamp", "2")
	params.Set("limit", "200")
	params.Set("endTime", "1")

	query := signedQuery(params, "secret")

	beforeSignature := strings.SplitN(query, "&signature=", 2)[0]
	assert.Equal(t, "endTime=1&limit=200&timestamp=2", beforeSignature)
}
