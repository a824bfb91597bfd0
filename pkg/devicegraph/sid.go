package devicegraph

import (
	"strconv"
	"sync/atomic"
)

// SID is the stable surrogate identity of a device. It is unique within the
// process, never reused, and survives [Graph.Clone].
type SID uint64

// String returns the decimal form of the sid.
func (s SID) String() string { return strconv.FormatUint(uint64(s), 10) }

var lastSID atomic.Uint64

// NextSID allocates a new sid.
func NextSID() SID {
	return SID(lastSID.Add(1))
}

// ReserveSID guarantees that NextSID never returns sid or anything below it.
// Decoders call this for every sid they load.
func ReserveSID(sid SID) {
	for {
		cur := lastSID.Load()
		if cur >= uint64(sid) || lastSID.CompareAndSwap(cur, uint64(sid)) {
			return
		}
	}
}
