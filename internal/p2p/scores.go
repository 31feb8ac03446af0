package p2p

import (
	"sort"
	"sync"
	"time"

	"blobnet/internal/domain"
)

// PeerScore tracks how well a peer has served blobs.
type PeerScore struct {
	Successes        int
	Failures         int
	AverageLatencyMs float64
	LastSeen         time.Time
}

// Score returns a ranking value; higher is better. Unknown peers score
// between reliable and failing ones.
func (ps *PeerScore) Score() float64 {
	total := ps.Successes + ps.Failures
	if total == 0 {
		return 50
	}
	successRate := float64(ps.Successes) / float64(total)

	latencyBonus := 0.0
	if ps.AverageLatencyMs > 0 {
		latencyBonus = 100.0 / ps.AverageLatencyMs
	}

	recencyBonus := 0.0
	if !ps.LastSeen.IsZero() {
		switch since := time.Since(ps.LastSeen); {
		case since < time.Hour:
			recencyBonus = 20
		case since < 24*time.Hour:
			recencyBonus = 10
		}
	}

	return successRate*100 + latencyBonus + recencyBonus
}

// Scoreboard keeps in-memory scores keyed by node id.
type Scoreboard struct {
	mu     sync.RWMutex
	scores map[string]*PeerScore
}

// NewScoreboard creates an empty scoreboard.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{scores: make(map[string]*PeerScore)}
}

// RecordSuccess notes a served blob and its latency.
func (s *Scoreboard) RecordSuccess(nodeID string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps := s.get(nodeID)
	ms := float64(latency.Milliseconds())
	if ps.Successes == 0 {
		ps.AverageLatencyMs = ms
	} else {
		// exponential moving average
		ps.AverageLatencyMs = 0.8*ps.AverageLatencyMs + 0.2*ms
	}
	ps.Successes++
	ps.LastSeen = time.Now()
}

// RecordFailure notes a failed request.
func (s *Scoreboard) RecordFailure(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(nodeID).Failures++
}

// Get returns a copy of the score for nodeID.
func (s *Scoreboard) Get(nodeID string) PeerScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ps, ok := s.scores[nodeID]; ok {
		return *ps
	}
	return PeerScore{}
}

// Rank orders contacts best first. The input slice is not modified.
func (s *Scoreboard) Rank(contacts []domain.PeerContact) []domain.PeerContact {
	ranked := make([]domain.PeerContact, len(contacts))
	copy(ranked, contacts)

	s.mu.RLock()
	scores := make(map[string]float64, len(ranked))
	for _, c := range ranked {
		ps := PeerScore{}
		if known, ok := s.scores[c.NodeID()]; ok {
			ps = *known
		}
		scores[c.NodeID()] = ps.Score()
	}
	s.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].NodeID()] > scores[ranked[j].NodeID()]
	})
	return ranked
}

func (s *Scoreboard) get(nodeID string) *PeerScore {
	ps, ok := s.scores[nodeID]
	if !ok {
		ps = &PeerScore{}
		s.scores[nodeID] = ps
	}
	return ps
}
