package wallet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"spin-server/common/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

func TestDebitAccepted(t *testing.T) {
	var got DebitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/debit" {
			t.Errorf("path=%s, want /debit", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"status":true,"msg":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", 1000)
	res, err := c.Debit(context.Background(), DebitRequest{
		TxnID:    "txn-1",
		PlayerID: "p100",
		Amount:   "10.00",
		IP:       "10.0.0.1",
		MatchID:  "SP1",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("accepted=false, want true")
	}
	if got.TxnID != "txn-1" || got.PlayerID != "p100" || got.Amount != "10.00" || got.IP != "10.0.0.1" || got.MatchID != "SP1" {
		t.Fatalf("request body mismatch: %+v", got)
	}
}

func TestCreditRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/credit" {
			t.Errorf("path=%s, want /credit", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":false,"msg":"account frozen"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", 1000)
	res, err := c.Credit(context.Background(), CreditRequest{TxnID: "txn-2", PlayerID: "p100", Amount: "42.40", MatchID: "SP1"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if res.Accepted {
		t.Fatalf("accepted=true, want false")
	}
	if res.Msg != "account frozen" {
		t.Fatalf("msg=%q", res.Msg)
	}
}

func TestNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", 1000)
	if _, err := c.Debit(context.Background(), DebitRequest{TxnID: "t", PlayerID: "p", Amount: "1"}); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestNewTxnIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewTxnID()
		if seen[id] {
			t.Fatalf("duplicate txn id: %s", id)
		}
		seen[id] = true
	}
}
