package replica

import "sync"

// CancelFunc aborts one outstanding send's retry loop when called. The
// transport hands one of these back per send; the core's only
// obligation is to hold onto it until the round it belongs to tears
// down (spec.md §5 "Cancellation & timeouts").
type CancelFunc func()

// CancelBucket buckets outstanding per-send cancel handlers by round,
// so a round teardown can drop every in-flight retry for that round in
// one step instead of tracking them individually.
type CancelBucket struct {
	mu      sync.Mutex
	byRound map[uint32][]CancelFunc
}

func NewCancelBucket() *CancelBucket {
	return &CancelBucket{byRound: make(map[uint32][]CancelFunc)}
}

func (b *CancelBucket) Add(round uint32, cancel CancelFunc) {
	if cancel == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byRound[round] = append(b.byRound[round], cancel)
}

// Drop abandons every cancel handler recorded for round, calling each
// one so retrying sends stop, then frees the bucket's memory.
func (b *CancelBucket) Drop(round uint32) {
	b.mu.Lock()
	handlers := b.byRound[round]
	delete(b.byRound, round)
	b.mu.Unlock()
	for _, c := range handlers {
		c()
	}
}
