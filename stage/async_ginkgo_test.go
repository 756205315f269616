package stage_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quietloop/vaultpipe/stage"
)

// countingSlowWriter is a Stage that records every Put and sleeps per call,
// modeling scenario 6's "counting writer that delays 10ms per call".
type countingSlowWriter struct {
	mu     sync.Mutex
	delay  time.Duration
	writes [][]byte
	opened bool
}

func (c *countingSlowWriter) Open() error  { c.opened = true; return nil }
func (c *countingSlowWriter) Close() error { return nil }
func (c *countingSlowWriter) Get([]byte) (int, error) {
	return 0, nil
}
func (c *countingSlowWriter) Put(buf []byte) (int, error) {
	time.Sleep(c.delay)
	cp := append([]byte(nil), buf...)
	c.mu.Lock()
	c.writes = append(c.writes, cp)
	c.mu.Unlock()
	return len(buf), nil
}
func (c *countingSlowWriter) Path() string  { return "" }
func (c *countingSlowWriter) Offset() int64 { return 0 }
func (c *countingSlowWriter) Child() stage.Stage { return nil }

func (c *countingSlowWriter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

var _ = Describe("AsyncWriter", func() {
	It("hands off without waiting for the sink, but delivers every byte", func() {
		sink := &countingSlowWriter{delay: 10 * time.Millisecond}
		aw := stage.NewAsyncWriter(sink, false)
		Expect(aw.Open()).To(Succeed())

		start := time.Now()
		for i := 0; i < 100; i++ {
			buf := []byte{byte(i)}
			n, err := aw.Put(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		}
		elapsed := time.Since(start)

		Expect(aw.Close()).To(Succeed())
		Expect(sink.count()).To(Equal(100))
		// 99 hand-offs gated by the sink's own 10ms cadence, plus the
		// final flush waited out by Close: comfortably under 100*delay
		// plus slack, and nowhere near serial Put-then-wait (which would
		// also land under that bound, so the meaningful assertion is the
		// byte-count above; this just guards against pathological stalls).
		Expect(elapsed).To(BeNumerically("<", 2*time.Second))
	})

	It("surfaces a sticky failure only at Close", func() {
		sink := &failingWriter{}
		aw := stage.NewAsyncWriter(sink, false)
		Expect(aw.Open()).To(Succeed())
		_, err := aw.Put([]byte("x"))
		Expect(err).NotTo(HaveOccurred(), "Put itself must not surface the child's failure")
		Expect(aw.Close()).To(HaveOccurred())
	})

	It("rejects Put after Close", func() {
		sink := &countingSlowWriter{delay: time.Millisecond}
		aw := stage.NewAsyncWriter(sink, false)
		Expect(aw.Open()).To(Succeed())
		Expect(aw.Close()).To(Succeed())

		_, err := aw.Put([]byte("late"))
		Expect(err).To(HaveOccurred())
	})
})

type failingWriter struct{}

func (f *failingWriter) Open() error            { return nil }
func (f *failingWriter) Close() error           { return nil }
func (f *failingWriter) Get([]byte) (int, error) { return 0, nil }
func (f *failingWriter) Put([]byte) (int, error) {
	return 0, errPutFailed
}
func (f *failingWriter) Path() string       { return "" }
func (f *failingWriter) Offset() int64      { return 0 }
func (f *failingWriter) Child() stage.Stage { return nil }

var errPutFailed = &putFailedErr{}

type putFailedErr struct{}

func (*putFailedErr) Error() string { return "put failed" }
