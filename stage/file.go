package stage

import (
	"io"
	"os"

	"github.com/quietloop/vaultpipe/internal/coreerr"
)

// File is a bottom-of-chain stage backed by an on-disk file, fixed at
// construction to either reader or writer mode (spec.md §4.B) — the two are
// never mixed on one instance. Open uses large-file, truncate-on-write,
// create-on-write, no-atime-on-read semantics matching
// original_source/src/filereaderwriter.cpp; Get/Put loop until the
// requested count is reached or EOF.
type File struct {
	base
	path   string
	writer bool
	f      *os.File
	offset int64
}

// NewFileReader returns a File stage that reads path. Open fails with
// coreerr.Resource if the file cannot be opened for reading.
func NewFileReader(path string) *File {
	return &File{path: path, writer: false}
}

// NewFileWriter returns a File stage that creates (or truncates) and writes
// path. Open fails with coreerr.Resource if the file cannot be created.
func NewFileWriter(path string) *File {
	return &File{path: path, writer: true}
}

func (f *File) Open() error {
	f.offset = 0
	var (
		flags = os.O_RDONLY
		err   error
	)
	if f.writer {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		f.f, err = os.OpenFile(f.path, flags, 0o666)
	} else {
		f.f, err = openNoAtime(f.path)
	}
	if err != nil {
		return coreerr.Wrap(coreerr.Resource, "file.open", err)
	}
	return nil
}

func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return coreerr.Wrap(coreerr.IO, "file.close", err)
}

// Get loops until len(buf) bytes are read or EOF, matching
// FileReaderWriter::get in the source.
func (f *File) Get(buf []byte) (int, error) {
	if f.writer {
		return 0, coreerr.New(coreerr.InvalidUse, "file.get")
	}
	count := 0
	for count < len(buf) {
		n, err := f.f.Read(buf[count:])
		count += n
		f.offset += int64(n)
		if err != nil {
			if err == io.EOF {
				break
			}
			return count, coreerr.Wrap(coreerr.IO, "file.get", err)
		}
		if n == 0 {
			break
		}
	}
	return count, nil
}

// Put loops until len(buf) bytes are written or a terminal failure occurs.
func (f *File) Put(buf []byte) (int, error) {
	if !f.writer {
		return 0, coreerr.New(coreerr.InvalidUse, "file.put")
	}
	count := 0
	for count < len(buf) {
		n, err := f.f.Write(buf[count:])
		count += n
		f.offset += int64(n)
		if err != nil {
			return count, coreerr.Wrap(coreerr.IO, "file.put", err)
		}
		if n == 0 {
			break
		}
	}
	return count, nil
}

func (f *File) Path() string  { return f.path }
func (f *File) Offset() int64 { return f.offset }
func (f *File) Child() Stage  { return nil }
