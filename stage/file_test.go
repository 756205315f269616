package stage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quietloop/vaultpipe/stage"
)

func TestFileWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")

	w := stage.NewFileWriter(path)
	if err := w.Open(); err != nil {
		t.Fatalf("open writer: %v", err)
	}
	want := []byte("the quick brown fox jumps over the lazy dog")
	n, err := w.Put(want)
	if err != nil || n != len(want) {
		t.Fatalf("put: n=%d err=%v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	r := stage.NewFileReader(path)
	if err := r.Open(); err != nil {
		t.Fatalf("open reader: %v", err)
	}
	got := make([]byte, len(want))
	n, err = r.Get(got)
	if err != nil || n != len(want) {
		t.Fatalf("get: n=%d err=%v", n, err)
	}
	if string(got) != string(want) {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, want)
	}
	if r.Offset() != int64(len(want)) {
		t.Fatalf("offset = %d, want %d", r.Offset(), len(want))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close reader: %v", err)
	}
}

func TestFileGetShortAtEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short.bin")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := stage.NewFileReader(path)
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	buf := make([]byte, 10)
	n, err := r.Get(buf)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n != 3 {
		t.Fatalf("short read at EOF: got %d want 3", n)
	}
}

func TestFileWriterCannotGet(t *testing.T) {
	dir := t.TempDir()
	w := stage.NewFileWriter(filepath.Join(dir, "w.bin"))
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if _, err := w.Get(make([]byte, 1)); err == nil {
		t.Fatal("expected invalid-use error reading from a writer stage")
	}
}

func TestFileReaderOpenMissing(t *testing.T) {
	r := stage.NewFileReader("/nonexistent/path/definitely")
	if err := r.Open(); err == nil {
		t.Fatal("expected resource error opening a missing file")
	}
}
