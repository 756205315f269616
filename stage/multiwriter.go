package stage

import (
	"github.com/quietloop/vaultpipe/internal/coreerr"
)

// MultiWriter fans writes out to an ordered list of child writers (spec.md
// §4.E), grounded on original_source/src/multiwriter.cpp. Children may only
// be appended before Open.
type MultiWriter struct {
	children []multiChild
	path     string
}

type multiChild struct {
	stage       Stage
	deleteChild bool
}

// NewMultiWriter returns an empty multi-writer; use Add to append children
// before calling Open.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add appends a child writer, owned (closed on MultiWriter.Close/failed
// Open) iff deleteChild.
func (m *MultiWriter) Add(child Stage, deleteChild bool) {
	m.children = append(m.children, multiChild{child, deleteChild})
}

// Open opens each child in order; if any fails, the previously-opened
// children are closed in reverse and the failure is surfaced.
func (m *MultiWriter) Open() error {
	for i, c := range m.children {
		if err := c.stage.Open(); err != nil {
			m.path = c.stage.Path()
			for j := i - 1; j >= 0; j-- {
				_ = m.children[j].stage.Close()
			}
			return err
		}
	}
	return nil
}

// Close closes every owned child and reports the first failure seen,
// matching MultiWriter::close's "try all, fail if any" behavior. A child
// added with deleteChild=false is left for its original owner to close.
func (m *MultiWriter) Close() error {
	var first error
	for _, c := range m.children {
		if !c.deleteChild {
			continue
		}
		if err := c.stage.Close(); err != nil {
			if first == nil {
				first = err
				m.path = c.stage.Path()
			}
		}
	}
	return first
}

// Get always fails: a multi-writer cannot be read from.
func (m *MultiWriter) Get(buf []byte) (int, error) {
	return 0, coreerr.New(coreerr.Protocol, "multiwriter.get")
}

// Put drives every child with the same buffer in order; the first short
// write or error aborts the iteration (remaining children are not touched
// for that record) and causes the multi-writer to fail.
func (m *MultiWriter) Put(buf []byte) (int, error) {
	for _, c := range m.children {
		n, err := c.stage.Put(buf)
		if err != nil || n < len(buf) {
			m.path = c.stage.Path()
			if err == nil {
				err = coreerr.New(coreerr.IO, "multiwriter.put")
			}
			return 0, err
		}
	}
	return len(buf), nil
}

// Path returns the path of the child that caused the most recent Open or
// Put failure (for Close, the first child whose close failed), or the first
// child's own path if nothing has failed yet.
func (m *MultiWriter) Path() string {
	if m.path != "" {
		return m.path
	}
	if len(m.children) > 0 {
		return m.children[0].stage.Path()
	}
	return ""
}

// Offset returns the first child's non-negative offset.
func (m *MultiWriter) Offset() int64 {
	for _, c := range m.children {
		if off := c.stage.Offset(); off >= 0 {
			return off
		}
	}
	return -1
}

// Child returns the first child, for callers that walk the chain assuming a
// single-child shape; Add exposes the full list for everything else.
func (m *MultiWriter) Child() Stage {
	if len(m.children) == 0 {
		return nil
	}
	return m.children[0].stage
}
