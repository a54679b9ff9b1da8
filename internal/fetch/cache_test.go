package fetch

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "responses.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()

	const url = "http://example.com/wms?service=WMS&request=GetCapabilities"
	body := []byte("<WMS_Capabilities/>")

	if _, ok, err := cache.Get(url, 0); err != nil || ok {
		t.Fatalf("Get on empty cache = ok %v, err %v", ok, err)
	}

	if err := cache.Put(url, body); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := cache.Get(url, time.Hour)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if string(got) != string(body) {
		t.Errorf("Get body = %q", got)
	}

	// A zero-length max age accepts any copy.
	if _, ok, _ := cache.Get(url, 0); !ok {
		t.Error("Get with maxAge 0 should accept a stored copy")
	}

	// An entry older than maxAge is a miss.
	if _, ok, _ := cache.Get(url, time.Nanosecond); ok {
		t.Error("Get with tiny maxAge should miss")
	}
}

func TestCachePutReplaces(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "responses.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()

	const url = "http://example.com/doc"
	if err := cache.Put(url, []byte("old")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.Put(url, []byte("new")); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	got, ok, err := cache.Get(url, time.Hour)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if string(got) != "new" {
		t.Errorf("Get body = %q, want replacement", got)
	}
}
