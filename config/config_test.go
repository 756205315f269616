package config_test

import (
	"testing"
	"time"

	"github.com/quietloop/vaultpipe/config"
)

func TestDefaultIsSane(t *testing.T) {
	c := config.Default()
	if c.Queue.Capacity <= 0 {
		t.Fatalf("default queue capacity = %d, want > 0", c.Queue.Capacity)
	}
	if c.Digest.Algorithm == "" {
		t.Fatal("default digest algorithm must not be empty")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := config.Default()
	c.Pool.MaxThreads = 8
	c.Socket.Addr = "/tmp/x.sock"

	buf, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got := &config.Config{}
	if err := got.Decode(buf); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Pool.MaxThreads != 8 || got.Socket.Addr != "/tmp/x.sock" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	c := config.Default()
	if err := c.Decode([]byte("{not json")); err == nil {
		t.Fatal("expected decode error for malformed JSON")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := config.Default()
	clone := c.Clone()
	clone.Pool.MaxThreads = 99
	if c.Pool.MaxThreads == 99 {
		t.Fatal("mutating a clone must not affect the original")
	}
}

func TestGCORoundTrip(t *testing.T) {
	original := config.GCO.Get()
	defer config.GCO.Put(original)

	replacement := config.GCO.Clone()
	replacement.Pool.IdleTO = 30 * time.Second
	config.GCO.Put(replacement)

	if config.GCO.Get().Pool.IdleTO != 30*time.Second {
		t.Fatal("GCO.Put should install the replacement for subsequent Get calls")
	}
}
