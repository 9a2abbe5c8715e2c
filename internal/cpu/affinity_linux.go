//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to CPU slot mod NumCPU. The returned func restores the thread's previous
// affinity mask and unlocks it. If the mask cannot be restored the thread
// stays locked, and the runtime terminates it when the goroutine exits.
func Pin(slot int) (release func()) {
	runtime.LockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		// A container may forbid the syscalls; run unpinned.
		return runtime.UnlockOSThread
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(Core(slot))
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return runtime.UnlockOSThread
	}

	return func() {
		if err := unix.SchedSetaffinity(0, &prev); err != nil {
			return
		}
		runtime.UnlockOSThread()
	}
}
