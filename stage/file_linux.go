//go:build linux

package stage

import "os"

// openNoAtime opens path for reading without updating its atime, matching
// the O_NOATIME flag FileReaderWriter::open sets on read. O_NOATIME is
// Linux-specific and rejected by the kernel (EPERM) for files not owned by
// the caller, so a failure here falls back to a plain read-only open rather
// than failing the whole stage over a courtesy flag.
func openNoAtime(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscallNoAtime, 0)
	if err != nil {
		return os.OpenFile(path, os.O_RDONLY, 0)
	}
	return f, nil
}
