package stage

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/quietloop/vaultpipe/internal/coreerr"
)

// AsyncWriter is a one-slot hand-off to a dedicated background goroutine
// (spec.md §4.F), grounded on original_source/src/asyncwriter.cpp. The
// source models this with a buffer mutex and a thread mutex; an unbuffered
// channel is the equivalent and clearer Go shape spec.md's design notes call
// out: a send on slot rendezvous with the worker's receive only once the
// worker has looped back from finishing the previous item, which is exactly
// the "wait for any prior put to complete" backpressure the buffer mutex
// gave the source — without requiring a reply channel, since Put must
// return as soon as the hand-off happens, not once the child has drained it.
//
// Caller contract (unchanged from the source): buf passed to Put must
// remain valid until the next Put or Close returns — callers must
// double-buffer if they intend to reuse the slice immediately.
type AsyncWriter struct {
	base
	slot    chan []byte
	wg      sync.WaitGroup
	failed  atomic.Bool
	closing atomic.Bool
}

// NewAsyncWriter constructs an async writer over child.
func NewAsyncWriter(child Stage, deleteChild bool) *AsyncWriter {
	return &AsyncWriter{base: newBase(child, deleteChild)}
}

func (a *AsyncWriter) Open() error {
	if err := a.child.Open(); err != nil {
		return err
	}
	a.slot = make(chan []byte)
	a.failed.Store(false)
	a.closing.Store(false)
	a.wg.Add(1)
	go a.run()
	return nil
}

func (a *AsyncWriter) run() {
	defer a.wg.Done()
	for buf := range a.slot {
		if _, err := a.child.Put(buf); err != nil {
			a.failed.Store(true)
		}
	}
}

// Close takes the last put's completion, marks closing so no further Put is
// accepted, lets the background goroutine exit, and joins it.
func (a *AsyncWriter) Close() error {
	a.closing.Store(true)
	close(a.slot)
	a.wg.Wait()
	var err error
	if a.failed.Load() {
		err = coreerr.New(coreerr.IO, "async.put")
	}
	return worst(err, a.closeChild())
}

// Get always fails: an async writer is write-only.
func (a *AsyncWriter) Get(buf []byte) (int, error) {
	return 0, coreerr.New(coreerr.Protocol, "async.get")
}

// Put hands buf to the background goroutine, blocking only until the
// goroutine is ready to receive it — i.e. until any prior Put's child.Put
// has finished — and returns without waiting for this buf's own child.Put.
func (a *AsyncWriter) Put(buf []byte) (int, error) {
	if a.failed.Load() {
		return 0, coreerr.New(coreerr.IO, "async.put")
	}
	if a.closing.Load() {
		return 0, coreerr.New(coreerr.InvalidUse, "async.put")
	}
	a.slot <- buf
	return len(buf), nil
}
