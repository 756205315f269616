package stage

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/quietloop/vaultpipe/internal/coreerr"
)

// GzipWriter wraps a child stage and compresses everything written through
// it into a gzip envelope (spec.md §4.C), grounded on
// original_source/src/zipwriter.cpp's use of deflateInit2 with a 16+15
// window (gzip framing, max dictionary). klauspost/compress/gzip exposes the
// same gzip.Writer API as the stdlib but with a faster implementation, and
// — unlike the C++ source, which silences deflate's return code behind a
// boolean-comparison bug — surfaces every write error as a genuine Go
// error, so GzipWriter.Put never has a code to swallow.
type GzipWriter struct {
	base
	level    int
	w        io.Writer // child adapted to io.Writer
	gz       *gzip.Writer
	finished bool
}

// childWriter adapts a Stage's Put to io.Writer so the stdlib-shaped gzip
// writer can drive it directly.
type childWriter struct{ child Stage }

func (c childWriter) Write(p []byte) (int, error) {
	n, err := c.child.Put(p)
	return n, err
}

// NewGzipWriter constructs a compress-writer with the given deflate level
// (1..9) over child, which is owned (closed) by this stage iff deleteChild.
func NewGzipWriter(child Stage, deleteChild bool, level int) *GzipWriter {
	if level < 1 || level > 9 {
		level = gzip.DefaultCompression
	}
	return &GzipWriter{base: newBase(child, deleteChild), level: level}
}

func (z *GzipWriter) Open() error {
	if err := z.child.Open(); err != nil {
		return err
	}
	z.w = childWriter{z.child}
	gz, err := gzip.NewWriterLevel(z.w, z.level)
	if err != nil {
		_ = z.child.Close()
		return coreerr.Wrap(coreerr.Resource, "gzip.open", err)
	}
	z.gz = gz
	z.finished = false
	return nil
}

func (z *GzipWriter) Close() error {
	if z.gz == nil {
		return z.closeChild()
	}
	var err error
	if !z.finished {
		_, err = z.putFinish()
	}
	if closeErr := z.gz.Close(); closeErr != nil && err == nil {
		err = coreerr.Wrap(coreerr.Codec, "gzip.close", closeErr)
	}
	return worst(err, z.closeChild())
}

// Get always fails: a compress-writer cannot be read from (spec.md §4.C).
func (z *GzipWriter) Get(buf []byte) (int, error) {
	return 0, coreerr.New(coreerr.Protocol, "gzip.get")
}

// Put drives the gzip writer with the given bytes. A zero-length Put (or
// Close before one has been issued) finalizes the stream, matching
// ZipWriter::put(NULL, 0) in the source.
func (z *GzipWriter) Put(buf []byte) (int, error) {
	if z.finished {
		return 0, nil
	}
	if len(buf) == 0 {
		return z.putFinish()
	}
	n, err := z.gz.Write(buf)
	if err != nil {
		return n, coreerr.Wrap(coreerr.Codec, "gzip.put", err)
	}
	return n, nil
}

func (z *GzipWriter) putFinish() (int, error) {
	z.finished = true
	if err := z.gz.Close(); err != nil {
		return 0, coreerr.Wrap(coreerr.Codec, "gzip.put", err)
	}
	return 0, nil
}

// GzipReader wraps a child stage and decompresses a gzip envelope read from
// it (spec.md §4.C), grounded on original_source/src/unzipreader.cpp.
type GzipReader struct {
	base
	r  io.Reader
	gz *gzip.Reader
}

// childReader adapts a Stage's Get to io.Reader.
type childReader struct{ child Stage }

func (c childReader) Read(p []byte) (int, error) {
	n, err := c.child.Get(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

// NewGzipReader constructs a decompress-reader over child.
func NewGzipReader(child Stage, deleteChild bool) *GzipReader {
	return &GzipReader{base: newBase(child, deleteChild)}
}

func (u *GzipReader) Open() error {
	if err := u.child.Open(); err != nil {
		return err
	}
	u.r = childReader{u.child}
	gz, err := gzip.NewReader(u.r)
	if err != nil {
		_ = u.child.Close()
		return coreerr.Wrap(coreerr.Resource, "gzip.open", err)
	}
	u.gz = gz
	return nil
}

func (u *GzipReader) Close() error {
	var err error
	if u.gz != nil {
		if closeErr := u.gz.Close(); closeErr != nil {
			err = coreerr.Wrap(coreerr.Codec, "gzip.close", closeErr)
		}
	}
	return worst(err, u.closeChild())
}

// Get refills and inflates until n bytes are produced or the stream ends; a
// short count at a clean io.EOF signals end-of-stream, matching
// UnzipReader::read. io.ErrUnexpectedEOF means the gzip stream was truncated
// or corrupt partway through a read and must surface as coreerr.Codec, not
// be mistaken for a clean end.
func (u *GzipReader) Get(buf []byte) (int, error) {
	count := 0
	for count < len(buf) {
		n, err := u.gz.Read(buf[count:])
		count += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, coreerr.Wrap(coreerr.Codec, "gzip.get", err)
		}
		if n == 0 {
			break
		}
	}
	return count, nil
}

// Put always fails: a decompress-reader cannot be written to.
func (u *GzipReader) Put(buf []byte) (int, error) {
	return 0, coreerr.New(coreerr.Protocol, "gzip.put")
}
