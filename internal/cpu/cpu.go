// Package cpu pins pool workers to CPUs.
package cpu

import "runtime"

// Core maps a worker slot onto a logical CPU index.
func Core(slot int) int {
	n := runtime.NumCPU()
	slot %= n
	if slot < 0 {
		slot += n
	}
	return slot
}
