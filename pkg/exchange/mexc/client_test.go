package mexc

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpflow/pkg/exchange"
)

func envelope(data string) string {
	return `{"success":true,"code":0,"data":` + data + `}`
}

func TestClientSignsPrivateRequests(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	var gotKey, gotTime, gotSig, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("ApiKey")
		gotTime = r.Header.Get("Request-Time")
		gotSig = r.Header.Get("Signature")
		gotQuery = r.URL.RawQuery
		w.Write([]byte(envelope(`[]`)))
	}))
	defer server.Close()

	client := NewClient("test-key", "test-secret",
		WithBaseURL(server.URL),
		WithClock(func() time.Time { return fixed }),
	)
	_, err := client.Assets(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "1700000000000", gotTime)
	assert.Equal(t, signPayload("test-key", "test-secret", "1700000000000", gotQuery), gotSig)
}

func TestClientPrivateCallFailsFastWithoutCredentials(t *testing.T) {
	calls := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(envelope(`[]`)))
	}))
	defer server.Close()

	client := NewClient("", "", WithBaseURL(server.URL))

	_, err := client.Assets(context.Background())
	require.ErrorIs(t, err, exchange.ErrCredentialsMissing)

	_, err = client.SubmitOrder(context.Background(), SubmitOrderRequest{Symbol: "BTC_USDT"})
	require.ErrorIs(t, err, exchange.ErrCredentialsMissing)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no request may leave the process")
}

func TestClientRetriesGetOnServerError(t *testing.T) {
	calls := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(envelope(`{"symbol":"BTC_USDT","lastPrice":100}`)))
	}))
	defer server.Close()

	client := NewClient("", "", WithBaseURL(server.URL))
	data, err := client.Ticker(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 100.0, data.LastPrice)
}

func TestClientWithLoggerReportsRetries(t *testing.T) {
	calls := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(envelope(`{"symbol":"BTC_USDT","lastPrice":100}`)))
	}))
	defer server.Close()

	var buf bytes.Buffer
	client := NewClient("", "",
		WithBaseURL(server.URL),
		WithLogger(log.New(&buf, "", 0)),
	)
	_, err := client.Ticker(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "attempt 1/3")
	assert.Contains(t, buf.String(), "http status 502")
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	calls := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("", "", WithBaseURL(server.URL))
	_, err := client.Ticker(context.Background(), "BTC_USDT")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientDoesNotRetryPost(t *testing.T) {
	calls := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("k", "s", WithBaseURL(server.URL))
	_, err := client.SubmitOrder(context.Background(), SubmitOrderRequest{Symbol: "BTC_USDT"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "order placement must never be retried")
}

func TestClientRejectsEnvelopeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"code":1002,"message":"Contract not activated"}`))
	}))
	defer server.Close()

	client := NewClient("", "", WithBaseURL(server.URL))
	_, err := client.Ticker(context.Background(), "BTC_USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Contract not activated")
}

func TestDecodeOrderIDVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"102015012431820288"`, "102015012431820288"},
		{"number", `102015012431820288`, "102015012431820288"},
		{"object", `{"orderId":102015012431820288}`, "102015012431820288"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeOrderID(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := decodeOrderID(json.RawMessage(`[1,2]`))
	require.Error(t, err)
}

func TestSignPayloadIsDeterministic(t *testing.T) {
	a := signPayload("key", "secret", "1700000000000", "symbol=BTC_USDT")
	b := signPayload("key", "secret", "1700000000000", "symbol=BTC_USDT")
	c := signPayload("key", "other", "1700000000000", "symbol=BTC_USDT")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
