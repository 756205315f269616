// Package config provides the in-memory, JSON-decoded configuration for a
// vaultpipe process and an atomically-swappable global owner, modeled on
// the teacher's cmn.GCO (Global Config Owner). cmd/vaultd reads GCO.Get()
// once and passes the resulting *Config on explicitly (as the scheduler's
// user value, which pipeline routines receive as a parameter). The on-disk
// file grammar and CLI flags that populate a Config are
// explicitly out of core scope (spec.md §1); only the struct and its atomic
// holder live here.
package config

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/quietloop/vaultpipe/internal/coreerr"
)

var configJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// QueueConf sizes the bounded queues chaining pipeline stages together.
type QueueConf struct {
	Capacity int `json:"capacity"`
}

// PoolConf sizes a worker-pool scheduler.
type PoolConf struct {
	MaxThreads int           `json:"max_threads"`
	MinThreads int           `json:"min_threads"`
	IdleTO     time.Duration `json:"idle_timeout"`
}

// CompressConf configures the gzip stage.
type CompressConf struct {
	Level int `json:"level"`
}

// DigestConf names the digest algorithm the hasher stage uses; the string
// values match stage.Digest's constants (e.g. "sha256", "ripemd160").
type DigestConf struct {
	Algorithm string `json:"algorithm"`
}

// SocketConf configures a client or server stream-socket endpoint.
type SocketConf struct {
	Network      string        `json:"network"` // "unix" or "tcp"
	Addr         string        `json:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Config is the full set of tunables a vaultpipe process needs at runtime.
type Config struct {
	Queue    QueueConf    `json:"queue"`
	Pool     PoolConf     `json:"pool"`
	Compress CompressConf `json:"compress"`
	Digest   DigestConf   `json:"digest"`
	Socket   SocketConf   `json:"socket"`
}

// Default returns the baseline configuration new processes start from.
func Default() *Config {
	return &Config{
		Queue:    QueueConf{Capacity: 64},
		Pool:     PoolConf{MaxThreads: 0, MinThreads: 0, IdleTO: 10 * time.Minute},
		Compress: CompressConf{Level: 6},
		Digest:   DigestConf{Algorithm: "sha256"},
		Socket:   SocketConf{Network: "unix", Addr: "/var/run/vaultpipe.sock"},
	}
}

// Clone returns a deep copy safe for the caller to mutate independently of
// whatever the owner currently holds.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Decode replaces c's fields with the JSON document in buf.
func (c *Config) Decode(buf []byte) error {
	if err := configJSON.Unmarshal(buf, c); err != nil {
		return coreerr.Wrap(coreerr.Codec, "config.decode", err)
	}
	return nil
}

// Encode serializes c to JSON.
func (c *Config) Encode() ([]byte, error) {
	buf, err := configJSON.Marshal(c)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Codec, "config.encode", err)
	}
	return buf, nil
}

// owner is an atomically-swappable holder of the current process-wide
// Config, the Go equivalent of the teacher's GCO.
type owner struct {
	mu  sync.RWMutex
	cur *Config
}

// GCO is the process-wide global config owner, matching the teacher's own
// global-config-owner convention. Library packages do not read it
// themselves; the pipeline package takes the *Config it is handed.
var GCO = &owner{cur: Default()}

// Get returns the current config without copying — callers must treat the
// result as read-only, since another goroutine may Put a replacement at any
// time.
func (o *owner) Get() *Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cur
}

// Clone returns a private copy of the current config, safe to mutate and
// hand to Put.
func (o *owner) Clone() *Config {
	return o.Get().Clone()
}

// Put atomically installs cfg as the current config.
func (o *owner) Put(cfg *Config) {
	o.mu.Lock()
	o.cur = cfg
	o.mu.Unlock()
}
