// Package stage implements the uniform stream-stage contract (spec.md
// §4.A) and the concrete stages built on top of it: file (§4.B), gzip
// compress/decompress (§4.C), hasher (§4.D), multi-writer (§4.E), async
// writer (§4.F), and the socket stage (§4.J).
//
// A Stage is one link in a pipeline. Every concrete stage holds a reference
// to a child Stage (nil for bottom stages) plus whether it owns that child;
// owned children are closed by the parent's Close. Open/Close/Get/Put follow
// the lifecycle in spec.md §4.A: constructed -> open -> (get|put)* -> close.
// A stage that fails must still be closed by the caller; Close always
// attempts to close the child even when the stage itself already failed,
// and returns the worst of the two results.
package stage

// Stage is the contract every pipeline link honors. It deliberately mirrors
// io.ReadWriteCloser in spirit but keeps Get/Put distinct from Read/Write:
// Get reads up to n bytes (short reads allowed, 0 only at end-of-stream);
// Put writes exactly n bytes or fails. Concrete bottom stages (File, Socket)
// loop internally so their Get/Put honor the "exactly n" contract spec.md
// §4.A calls out; non-bottom stages forward whatever their child gives them.
type Stage interface {
	// Open acquires the underlying resource and recursively opens the
	// child. On failure it closes any partial state before returning so
	// nothing is leaked, and is idempotent with a subsequent Close even
	// after a failed Open.
	Open() error

	// Close releases resources and closes the child, always attempting
	// the child close even if this stage already failed, returning the
	// worst status observed.
	Close() error

	// Get reads up to len(buf) bytes into buf, returning the actual count.
	// A count of 0 is only valid at end-of-stream.
	Get(buf []byte) (int, error)

	// Put writes len(buf) bytes, returning the count actually written
	// (less than len(buf) only on terminal failure) or an error.
	Put(buf []byte) (int, error)

	// Path forwards to the bottom of the chain by default; non-bottom
	// stages may override to return a more informative value.
	Path() string

	// Offset forwards to the bottom of the chain by default: the
	// cumulative byte count transferred since Open.
	Offset() int64

	// Child returns the stage this one wraps, or nil at the bottom of
	// the chain.
	Child() Stage
}

// base is embedded by every concrete stage; it implements the
// child-forwarding defaults for Path/Offset/Child/Close so each stage only
// needs to override what it actually changes.
type base struct {
	child       Stage
	deleteChild bool
}

func newBase(child Stage, deleteChild bool) base {
	return base{child: child, deleteChild: deleteChild}
}

func (b *base) Child() Stage { return b.child }

func (b *base) Path() string {
	if b.child == nil {
		return ""
	}
	return b.child.Path()
}

func (b *base) Offset() int64 {
	if b.child == nil {
		return -1
	}
	return b.child.Offset()
}

// closeChild closes the child iff this stage owns it, and is the one place
// every wrapping stage's Close routes through so ownership is honored
// uniformly.
func (b *base) closeChild() error {
	if b.child == nil || !b.deleteChild {
		return nil
	}
	return b.child.Close()
}

// worst returns the more significant of two Close-time errors, keeping the
// first non-nil error encountered rather than letting a later, secondary
// failure (e.g. closing an already-broken child) shadow it.
func worst(first, second error) error {
	if first != nil {
		return first
	}
	return second
}
