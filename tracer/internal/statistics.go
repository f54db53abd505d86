package internal

import "sync"

// samplingStatistics counts the requests seen by one rule since the last
// snapshot.
type samplingStatistics struct {
	// requestCount is the number of requests matched against the rule.
	requestCount int64

	// sampleCount is the number of requests sampled using the rule.
	sampleCount int64

	// borrowCount is the number of requests sampled from a borrowed reservoir.
	borrowCount int64

	mu sync.Mutex
}

func (s *samplingStatistics) record(sampled, borrowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestCount++
	if sampled {
		s.sampleCount++
	}
	if borrowed {
		s.borrowCount++
	}
}

// snapshotAndReset returns the counters and zeroes them in one step.
func (s *samplingStatistics) snapshotAndReset() (requests, sampled, borrowed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requests, sampled, borrowed = s.requestCount, s.sampleCount, s.borrowCount
	s.requestCount, s.sampleCount, s.borrowCount = 0, 0, 0
	return
}
