//go:build linux

package stage

import "syscall"

const syscallNoAtime = syscall.O_NOATIME
