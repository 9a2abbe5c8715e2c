//go:build !linux

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. CPU pinning itself is
// only implemented on linux.
func Pin(slot int) (release func()) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
