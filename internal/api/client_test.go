package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`{"status":"ok"}`))
		case "/month/2024/1":
			w.Write([]byte(`{"days":[{"date":"2024-01-01","feast_name":"Octave Day of Christmas"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := NewOrdoAPIForURL(srv.URL + "/")
	if api.BaseURL() != srv.URL {
		t.Errorf("Expected trailing slash trimmed, got %q", api.BaseURL())
	}
	if err := api.Probe(context.Background()); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	resp, err := api.FetchMonth(context.Background(), 2024, time.January)
	if err != nil {
		t.Fatalf("FetchMonth failed: %v", err)
	}
	if len(resp.Days) != 1 || resp.Days[0].String("feast_name") != "Octave Day of Christmas" {
		t.Errorf("Unexpected days %v", resp.Days)
	}

	_, err = api.FetchMonth(context.Background(), 2024, time.February)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 StatusError, got %v", err)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL).WithRetries(3, time.Millisecond)
	if _, err := client.Get(context.Background(), "/"); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL).WithRetries(3, time.Millisecond)
	if _, err := client.Get(context.Background(), "month/2024/13"); err == nil {
		t.Fatal("Expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}

func TestClientProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	api := NewOrdoAPI(NewClient(url).WithRetries(1, 0))
	err := api.Probe(context.Background())
	if !IsConnectivityError(err) {
		t.Fatalf("Expected ConnectivityError, got %v", err)
	}
}
