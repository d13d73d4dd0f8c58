package proxypool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

func TestParseAddressList(t *testing.T) {
	raw := "10.0.0.1:8080\n# comment\n\nsocks5://10.0.0.2:1080\n  http://10.0.0.3:3128  \n"
	want := []string{"http://10.0.0.1:8080", "socks5://10.0.0.2:1080", "http://10.0.0.3:3128"}
	if got := ParseAddressList(raw); !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAddressList() = %v, want %v", got, want)
	}
}

func TestParseAddressListEmpty(t *testing.T) {
	if got := ParseAddressList("\n# only comments\n"); got != nil {
		t.Errorf("ParseAddressList() = %v, want nil", got)
	}
}

func TestLoadFromProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("10.0.0.1:8080\n10.0.0.2:8080\n"))
	}))
	defer srv.Close()

	addrs, err := LoadFromProvider(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 2 {
		t.Errorf("got %d addresses, want 2", len(addrs))
	}
}

func TestLoadFromProviderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("10.0.0.1:8080\n"))
	}))
	defer srv.Close()

	addrs, err := LoadFromProvider(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(addrs) != 1 {
		t.Errorf("got %d addresses, want 1", len(addrs))
	}
	if calls.Load() != 3 {
		t.Errorf("provider called %d times, want 3", calls.Load())
	}
}

func TestLoadFromProviderPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := LoadFromProvider(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 provider")
	}
	if calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1 (no retry on 404)", calls.Load())
	}
}
