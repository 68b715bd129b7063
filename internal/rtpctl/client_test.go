package rtpctl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueryParsesControlResponse(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":true,"probability":0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 1000)
	dec, err := c.Query(context.Background(), "fruit777", 31)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if gotPath != "/result" {
		t.Fatalf("path=%s, want /result", gotPath)
	}
	if gotQuery != "game_id=fruit777&count=31" {
		t.Fatalf("query=%s", gotQuery)
	}
	if !dec.Control {
		t.Fatalf("control=false, want true")
	}
	if !dec.Probability.IsZero() {
		t.Fatalf("probability=%s, want 0", dec.Probability)
	}
}

func TestQueryDoNotControl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"status":false,"probability":0.35}}`))
	}))
	defer srv.Close()

	dec, err := NewClient(srv.URL, 1000).Query(context.Background(), "fruit777", 31)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if dec.Control {
		t.Fatalf("control=true, want false")
	}
}

func TestQueryMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 1000).Query(context.Background(), "fruit777", 31); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestQueryMissingProbabilityIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 协议违规：status=true 但没有 probability 字段
		// 不能缺省成 0，否则会被当成强制输的裁决
		_, _ = w.Write([]byte(`{"data":{"status":true}}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 1000).Query(context.Background(), "fruit777", 31); err == nil {
		t.Fatalf("expected error when probability is absent")
	}
}

func TestQueryNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, 1000).Query(context.Background(), "fruit777", 31); err == nil {
		t.Fatalf("expected error for 503")
	}
}
