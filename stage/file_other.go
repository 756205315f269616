//go:build !linux

package stage

import "os"

// openNoAtime is the non-Linux fallback: O_NOATIME has no portable
// equivalent, so this is a plain read-only open.
func openNoAtime(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY, 0)
}
