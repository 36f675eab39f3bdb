package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering follows model.LeaderboardEntry.Less: metric ASC, then created_at,
// then id. In-order traversal yields the leaderboard best to worst and
// subtree sizes give O(log n) expected rank lookups.

type node struct {
	entry model.LeaderboardEntry
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, e model.LeaderboardEntry, prio uint64) *node {
	if n == nil {
		return &node{entry: e, prio: prio, size: 1}
	}
	if e.Less(n.entry) {
		n.left = insert(n.left, e, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, e, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// position returns the 0-based in-order index of e, which must be present.
func position(n *node, e model.LeaderboardEntry) int {
	idx := 0
	for n != nil {
		switch {
		case n.entry.ID == e.ID:
			return idx + nsize(n.left)
		case e.Less(n.entry):
			n = n.left
		default:
			idx += nsize(n.left) + 1
			n = n.right
		}
	}
	return -1
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Ranked) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Ranked{LeaderboardEntry: n.entry, Rank: len(*out) + 1})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore keeps the leaderboard in memory.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]model.LeaderboardEntry
	rng  *rand.Rand
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore(opts ...Option) *TreapStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	metrics.UpdateLeaderboardEntries(0)
	return &TreapStore{
		byID: make(map[string]model.LeaderboardEntry),
		rng:  rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15)), //nolint:gosec // treap balance only
	}
}

// Insert adds e in O(log n) expected time.
func (s *TreapStore) Insert(_ context.Context, e model.LeaderboardEntry) error {
	if err := validate(e); err != nil {
		return fmt.Errorf("%w: %s", err, e.ID)
	}
	s.mu.Lock()
	if _, ok := s.byID[e.ID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
	}
	s.byID[e.ID] = e
	s.root = insert(s.root, e, s.rng.Uint64())
	n := len(s.byID)
	s.mu.Unlock()

	metrics.RecordLeaderboardInsert()
	metrics.UpdateLeaderboardEntries(n)
	return nil
}

// Rank returns the entry and its rank in O(log n) expected time.
func (s *TreapStore) Rank(_ context.Context, id string) (Ranked, error) {
	start := time.Now()
	defer func() { metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds())) }()

	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Ranked{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Ranked{LeaderboardEntry: e, Rank: position(s.root, e) + 1}, nil
}

// TopN returns the first n entries.
func (s *TreapStore) TopN(_ context.Context, n int) ([]Ranked, error) {
	start := time.Now()
	defer func() { metrics.RecordLeaderboardQueryLatency(float64(time.Since(start).Milliseconds())) }()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Ranked, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	return out, nil
}

// Count returns the number of entries.
func (s *TreapStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Close is a no-op.
func (s *TreapStore) Close() error { return nil }
