package store

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, service string, level events.Level) model.LogRecord {
	return model.LogRecord{
		ID:        id,
		Service:   service,
		Action:    "action-" + id,
		Level:     level,
		Timestamp: time.Now().UTC(),
	}
}

func ids(records []model.LogRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func sum[K comparable](m map[K]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestRecentStore_EvictionScenario(t *testing.T) {
	s := New(2)

	s.Append(record("1", "A", events.LevelInfo))
	s.Append(record("2", "B", events.LevelError))
	s.Append(record("3", "A", events.LevelError))

	assert.Equal(t, []string{"3", "2"}, ids(s.All()))
	assert.Equal(t, []string{"3"}, ids(s.ByService("A")))
	assert.Equal(t, []string{"2"}, ids(s.ByService("B")))
	assert.Equal(t, []string{"3", "2"}, ids(s.ByLevel(events.LevelError)))
	assert.Empty(t, s.ByLevel(events.LevelInfo))

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalLogs)
	assert.Equal(t, map[events.Level]int{events.LevelError: 2}, stats.LogsByLevel)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, stats.LogsByService)
	assert.Equal(t, []string{"3", "2"}, ids(stats.RecentLogs))
}

func TestRecentStore_CapacityInvariant(t *testing.T) {
	const capacity = 7
	s := New(capacity)

	for i := 0; i < 50; i++ {
		s.Append(record(fmt.Sprint(i), "svc", events.LevelInfo))
		require.LessOrEqual(t, s.Size(), capacity)

		if i >= capacity {
			oldest := fmt.Sprint(i - capacity)
			assert.NotContains(t, ids(s.All()), oldest)
		}
	}
	assert.Equal(t, capacity, s.Size())
	assert.Equal(t, capacity, s.Capacity())
}

func TestRecentStore_OrderingNewestFirst(t *testing.T) {
	s := New(10)
	for i := 0; i < 25; i++ {
		s.Append(record(fmt.Sprintf("%02d", i), "svc", events.LevelDebug))
	}

	got := ids(s.All())
	require.Len(t, got, 10)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i-1], got[i], "records must be strictly newest first")
	}
	assert.Equal(t, "24", got[0])
	assert.Equal(t, "15", got[9])
}

func TestRecentStore_FilterCorrectness(t *testing.T) {
	services := []string{"user-service", "create-user-service", "billing"}
	s := New(40)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 100; i++ {
		svc := services[rng.Intn(len(services))]
		lvl := events.Levels[rng.Intn(len(events.Levels))]
		s.Append(record(fmt.Sprintf("%03d", i), svc, lvl))
	}

	all := s.All()
	for _, svc := range services {
		var expected []string
		for _, r := range all {
			if r.Service == svc {
				expected = append(expected, r.ID)
			}
		}
		assert.Equal(t, expected, nilIfEmpty(ids(s.ByService(svc))), svc)
	}
	for _, lvl := range events.Levels {
		var expected []string
		for _, r := range all {
			if r.Level == lvl {
				expected = append(expected, r.ID)
			}
		}
		assert.Equal(t, expected, nilIfEmpty(ids(s.ByLevel(lvl))), string(lvl))
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestRecentStore_StatsConsistency(t *testing.T) {
	s := New(30)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		svc := fmt.Sprintf("svc-%d", rng.Intn(5))
		lvl := events.Levels[rng.Intn(len(events.Levels))]
		if rng.Intn(10) == 0 {
			lvl = events.Level("TRACE")
		}
		s.Append(record(fmt.Sprint(i), svc, lvl))

		stats := s.Stats()
		require.Equal(t, stats.TotalLogs, sum(stats.LogsByService))
		require.Equal(t, stats.TotalLogs, sum(stats.LogsByLevel))
		require.Equal(t, s.Size(), stats.TotalLogs)
	}
}

func TestRecentStore_StatsRecentLogs(t *testing.T) {
	s := New(100, WithRecentCount(3))
	assert.Empty(t, s.Stats().RecentLogs)

	s.Append(record("a", "svc", events.LevelInfo))
	assert.Equal(t, []string{"a"}, ids(s.Stats().RecentLogs))

	for _, id := range []string{"b", "c", "d", "e"} {
		s.Append(record(id, "svc", events.LevelInfo))
	}
	assert.Equal(t, []string{"e", "d", "c"}, ids(s.Stats().RecentLogs))
}

func TestRecentStore_StatsDoesNotMutate(t *testing.T) {
	s := New(5)
	s.Append(record("1", "A", events.LevelInfo))

	stats := s.Stats()
	stats.LogsByService["A"] = 100
	stats.LogsByLevel[events.LevelError] = 3
	stats.RecentLogs[0].Service = "mutated"

	again := s.Stats()
	assert.Equal(t, map[string]int{"A": 1}, again.LogsByService)
	assert.Equal(t, map[events.Level]int{events.LevelInfo: 1}, again.LogsByLevel)
	assert.Equal(t, "A", s.All()[0].Service)
}

func TestRecentStore_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New(0).Capacity())
	assert.Equal(t, DefaultCapacity, New(-3).Capacity())
}

func TestRecentStore_SizeObserver(t *testing.T) {
	var sizes []int
	s := New(2, WithSizeObserver(func(n int) { sizes = append(sizes, n) }))

	s.Append(record("1", "A", events.LevelInfo))
	s.Append(record("2", "A", events.LevelInfo))
	s.Append(record("3", "A", events.LevelInfo))

	assert.Equal(t, []int{1, 2, 2}, sizes)
}

func TestRecentStore_ConcurrentAppendAndRead(t *testing.T) {
	const (
		writers   = 8
		perWriter = 500
		capacity  = 256
	)
	s := New(capacity)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Append(record(fmt.Sprintf("%d-%d", w, i), fmt.Sprintf("svc-%d", w), events.LevelInfo))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			stats := s.Stats()
			assert.Equal(t, stats.TotalLogs, sum(stats.LogsByService))
			assert.LessOrEqual(t, len(s.All()), capacity)
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, capacity, s.Size())
	assert.Equal(t, capacity, s.Stats().TotalLogs)
}
