package store

import (
	"sync"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/model"
)

const (
	// DefaultCapacity is the number of records kept when no capacity is configured
	DefaultCapacity = 1000

	// DefaultRecentCount is the number of records reported as recent in Stats
	DefaultRecentCount = 10
)

// Stats is a point-in-time summary of the store contents
type Stats struct {
	TotalLogs     int                  `json:"totalLogs"`
	LogsByService map[string]int       `json:"logsByService"`
	LogsByLevel   map[events.Level]int `json:"logsByLevel"`
	RecentLogs    []model.LogRecord    `json:"recentLogs"`
}

// RecentStore keeps the most recent records in a fixed-size ring.
// Appending beyond capacity evicts the oldest record. All operations take a
// single lock so appends are linearized and reads see a consistent snapshot.
type RecentStore struct {
	mu          sync.RWMutex
	ring        []model.LogRecord
	head        int // index of the oldest record
	size        int
	recentCount int

	byService map[string]int
	byLevel   map[events.Level]int

	onSizeChange func(int)
}

// Option configures a RecentStore
type Option func(*RecentStore)

// WithRecentCount sets how many records Stats reports as recent
func WithRecentCount(n int) Option {
	return func(s *RecentStore) {
		if n > 0 {
			s.recentCount = n
		}
	}
}

// WithSizeObserver registers a callback invoked with the new size after every append
func WithSizeObserver(fn func(int)) Option {
	return func(s *RecentStore) {
		s.onSizeChange = fn
	}
}

// New creates a store holding at most capacity records
func New(capacity int, opts ...Option) *RecentStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &RecentStore{
		ring:        make([]model.LogRecord, capacity),
		recentCount: DefaultRecentCount,
		byService:   make(map[string]int),
		byLevel:     make(map[events.Level]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append inserts a record at the tail, evicting the oldest one when full
func (s *RecentStore) Append(record model.LogRecord) {
	s.mu.Lock()
	capacity := len(s.ring)
	if s.size == capacity {
		evicted := s.ring[s.head]
		s.decrement(evicted)
		s.ring[s.head] = record
		s.head = (s.head + 1) % capacity
	} else {
		s.ring[(s.head+s.size)%capacity] = record
		s.size++
	}
	s.byService[record.Service]++
	s.byLevel[record.Level]++
	size := s.size
	s.mu.Unlock()

	if s.onSizeChange != nil {
		s.onSizeChange(size)
	}
}

func (s *RecentStore) decrement(r model.LogRecord) {
	if s.byService[r.Service] <= 1 {
		delete(s.byService, r.Service)
	} else {
		s.byService[r.Service]--
	}
	if s.byLevel[r.Level] <= 1 {
		delete(s.byLevel, r.Level)
	} else {
		s.byLevel[r.Level]--
	}
}

// Size returns the number of records currently held
func (s *RecentStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Capacity returns the maximum number of records held
func (s *RecentStore) Capacity() int {
	return len(s.ring)
}

// All returns every record, newest first
func (s *RecentStore) All() []model.LogRecord {
	return s.filter(func(model.LogRecord) bool { return true })
}

// ByService returns records emitted by the named service, newest first
func (s *RecentStore) ByService(service string) []model.LogRecord {
	return s.filter(func(r model.LogRecord) bool { return r.Service == service })
}

// ByLevel returns records with the given level, newest first
func (s *RecentStore) ByLevel(level events.Level) []model.LogRecord {
	return s.filter(func(r model.LogRecord) bool { return r.Level == level })
}

// Filter returns records accepted by match, newest first
func (s *RecentStore) Filter(match func(model.LogRecord) bool) []model.LogRecord {
	return s.filter(match)
}

func (s *RecentStore) filter(match func(model.LogRecord) bool) []model.LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LogRecord, 0, s.size)
	for i := s.size - 1; i >= 0; i-- {
		r := s.ring[(s.head+i)%len(s.ring)]
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarizes the current contents under one read lock
func (s *RecentStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalLogs:     s.size,
		LogsByService: make(map[string]int, len(s.byService)),
		LogsByLevel:   make(map[events.Level]int, len(s.byLevel)),
	}
	for k, v := range s.byService {
		stats.LogsByService[k] = v
	}
	for k, v := range s.byLevel {
		stats.LogsByLevel[k] = v
	}

	n := s.recentCount
	if n > s.size {
		n = s.size
	}
	stats.RecentLogs = make([]model.LogRecord, 0, n)
	for i := s.size - 1; i >= s.size-n; i-- {
		stats.RecentLogs = append(stats.RecentLogs, s.ring[(s.head+i)%len(s.ring)])
	}
	return stats
}
