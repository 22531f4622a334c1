package sim

import (
	"crypto/sha256"
	"math"
)

const digestSeed = "TickSim:series:v1"

// SeriesDigest computes a deterministic SHA-256 chain over a sample series.
// Two runs of the same strategy over the same event log must produce equal
// digests; the runner checks this when asked to verify reproducibility.
func SeriesDigest(samples []Sample) [32]byte {
	prev := sha256.Sum256([]byte(digestSeed))

	for _, s := range samples {
		h := sha256.New()
		h.Write(prev[:])

		buf := make([]byte, 0, 40)
		buf = appendInt64LE(buf, s.Time.UnixNano())
		buf = appendInt64LE(buf, s.Position)
		buf = appendUint64LE(buf, math.Float64bits(s.RealizedPnL))
		buf = appendUint64LE(buf, math.Float64bits(s.UnrealizedPnL))
		buf = appendUint64LE(buf, math.Float64bits(s.MidPrice))
		h.Write(buf)

		copy(prev[:], h.Sum(nil))
	}
	return prev
}

func appendInt64LE(buf []byte, v int64) []byte {
	return appendUint64LE(buf, uint64(v))
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
