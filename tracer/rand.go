package tracer

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

func newSeed() int64 {
	var seed int64
	if err := binary.Read(crand.Reader, binary.BigEndian, &seed); err != nil {
		// fallback to timestamp
		seed = time.Now().UnixNano()
	}
	return seed
}

var (
	globalRand   = newGlobalRand()
	globalRandMu sync.Mutex
)

func newGlobalRand() *rand.Rand {
	src := rand.NewSource(newSeed())
	if src64, ok := src.(rand.Source64); ok {
		return rand.New(src64)
	}
	return rand.New(src)
}

// randomJitter returns a duration in [0, max).
func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	globalRandMu.Lock()
	defer globalRandMu.Unlock()
	return time.Duration(globalRand.Int63n(int64(max)))
}

// newClientID returns the 24 hex character id identifying this process to
// the sampling service.
func newClientID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:12])
}
