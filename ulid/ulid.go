// Package ulid makes monotonic ULIDs for naming selection cycles.
package ulid

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	mathrand "math/rand"
	"sync"
	"time"

	oklid "github.com/oklog/ulid/v2"
)

var monotonicPool = sync.Pool{
	New: func() interface{} {
		var seed int64
		err := binary.Read(cryptorand.Reader, binary.BigEndian, &seed)
		if err != nil {
			// crypto/rand doesn't fail on supported platforms
			panic("crypto/rand: " + err.Error())
		}

		rand := mathrand.New(mathrand.NewSource(seed))
		inc := uint64(rand.Int63())

		return oklid.Monotonic(rand, inc)
	},
}

// MakeULID returns a new ULID for t. IDs made from the same pooled entropy
// source within one millisecond are strictly increasing.
func MakeULID(t time.Time) (oklid.ULID, error) {
	mono := monotonicPool.Get().(io.Reader)
	defer monotonicPool.Put(mono)

	return oklid.New(oklid.Timestamp(t), mono)
}
