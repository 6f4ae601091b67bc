package chainrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

func rpcHandler(t *testing.T, handler func(method string) (interface{}, *JSONRPCError)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		result, rpcErr := handler(req.Method)
		resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		if rpcErr == nil {
			raw, _ := json.Marshal(result)
			resp.Result = raw
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func testClient(url string) *HTTPClient {
	cfg := DefaultClientConfig(url)
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return NewHTTPClient(cfg)
}

func TestGetHealth(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, func(method string) (interface{}, *JSONRPCError) {
		if method != "getHealth" {
			t.Errorf("method = %s, want getHealth", method)
		}
		return "ok", nil
	}))
	defer srv.Close()

	if err := testClient(srv.URL).GetHealth(context.Background()); err != nil {
		t.Errorf("GetHealth: %v", err)
	}
}

func TestGetHealthRPCError(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, func(string) (interface{}, *JSONRPCError) {
		return nil, &JSONRPCError{Code: -32005, Message: "node is behind"}
	}))
	defer srv.Close()

	err := testClient(srv.URL).GetHealth(context.Background())
	if err == nil {
		t.Fatal("expected error from unhealthy node")
	}
	if _, ok := err.(*RPCError); !ok {
		t.Errorf("error type = %T, want *RPCError", err)
	}
}

func TestGetLatestBlockhash(t *testing.T) {
	want := solana.Hash{1, 2, 3}
	srv := httptest.NewServer(rpcHandler(t, func(method string) (interface{}, *JSONRPCError) {
		if method != "getLatestBlockhash" {
			t.Errorf("method = %s, want getLatestBlockhash", method)
		}
		return map[string]interface{}{
			"value": map[string]string{"blockhash": want.String()},
		}, nil
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if !got.Equals(want) {
		t.Errorf("blockhash = %s, want %s", got, want)
	}
}

func TestCallRetriesOn503(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rpcHandler(t, func(string) (interface{}, *JSONRPCError) { return "ok", nil })(w, r)
	}))
	defer srv.Close()

	if err := testClient(srv.URL).GetHealth(context.Background()); err != nil {
		t.Fatalf("GetHealth after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestProberPicksFirstHealthy(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	up := httptest.NewServer(rpcHandler(t, func(string) (interface{}, *JSONRPCError) { return "ok", nil }))
	defer up.Close()

	prober := NewProber([]Client{testClient(down.URL), testClient(up.URL)}, nil)
	picked, err := prober.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if picked.URL() != up.URL {
		t.Errorf("picked %s, want %s", picked.URL(), up.URL)
	}
}

func TestProberAllDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	prober := NewProber([]Client{testClient(down.URL)}, nil)
	if _, err := prober.Pick(context.Background()); err == nil {
		t.Error("expected error when every endpoint is down")
	}
}

func TestProberNoEndpoints(t *testing.T) {
	prober := NewProber(nil, nil)
	if _, err := prober.Pick(context.Background()); err == nil {
		t.Error("expected error with no endpoints")
	}
}
