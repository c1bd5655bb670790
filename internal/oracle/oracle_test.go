package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestClientFetchParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("block_height") != "800000" {
			t.Errorf("block_height = %q, want 800000", r.URL.Query().Get("block_height"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"hash":         "abc123",
				"balance_data": "ordi,addr1,100",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	hash, balanceData, err := c.Fetch(context.Background(), 800000)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("hash = %q, want %q", hash, "abc123")
	}
	if balanceData != "ordi,addr1,100" {
		t.Errorf("balanceData = %q", balanceData)
	}
}

func TestCompareMatchingHashesNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"hash": "same", "balance_data": ""},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := Compare(context.Background(), c, 1, "same", Fatal, zap.NewNop())
	if err != nil {
		t.Errorf("expected no error for matching hashes, got %v", err)
	}
}

func TestCompareMismatchReportOnlyDoesNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"hash": "oracle-hash", "balance_data": ""},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := Compare(context.Background(), c, 1, "local-hash", ReportOnly, zap.NewNop())
	if err != nil {
		t.Errorf("ReportOnly policy should never return an error, got %v", err)
	}
}

func TestCompareMismatchFatalReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"hash": "oracle-hash", "balance_data": ""},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := Compare(context.Background(), c, 1, "local-hash", Fatal, zap.NewNop())
	if err == nil {
		t.Fatal("expected OracleMismatch error under Fatal policy")
	}
	if _, ok := err.(*OracleMismatch); !ok {
		t.Errorf("expected *OracleMismatch, got %T", err)
	}
}

func TestCompareFetchFailureNeverErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := Compare(context.Background(), c, 1, "local-hash", Fatal, zap.NewNop())
	if err != nil {
		t.Errorf("an unreachable oracle should never itself be treated as a consensus mismatch, got %v", err)
	}
}
