package scan

import (
	"hash/fnv"
	"sync"
)

// lockStripes is the number of mutex stripes. Collisions between distinct
// drives only cost unnecessary serialization, never correctness.
const lockStripes = 64

// driveLocks serializes traversals of the same drive while letting
// different drives proceed in parallel. Two concurrent traversals of the
// same drive would race on the same item keys and on the drive's stored
// delta token.
type driveLocks struct {
	stripes [lockStripes]sync.Mutex
}

// forDrive returns the mutex guarding the given drive's traversals.
func (l *driveLocks) forDrive(driveID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(driveID))

	return &l.stripes[h.Sum32()%lockStripes]
}
