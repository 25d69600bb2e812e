package query

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Log-Tools/logging-pipeline/events"
	"github.com/Log-Tools/logging-pipeline/internal/model"
	"github.com/Log-Tools/logging-pipeline/internal/sink"
	"github.com/Log-Tools/logging-pipeline/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, text string) (*sink.SearchResult, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sink.SearchResult), args.Error(1)
}

func (m *MockSearcher) Stats(ctx context.Context) sink.BackendStats {
	args := m.Called(ctx)
	return args.Get(0).(sink.BackendStats)
}

func record(id, service, action string, level events.Level) model.LogRecord {
	return model.LogRecord{
		ID:        id,
		Service:   service,
		Action:    action,
		Level:     level,
		Timestamp: time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC),
	}
}

func seededStore() *store.RecentStore {
	s := store.New(10)
	s.Append(record("1", "user-service", "getUsers", events.LevelInfo))
	s.Append(record("2", "create-user-service", "createUser", events.LevelInfo))
	s.Append(record("3", "user-service", "deleteUser", events.LevelError))
	return s
}

func ids(records []model.LogRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestService_ReadQueries(t *testing.T) {
	svc := NewService(seededStore(), nil, zerolog.Nop())

	assert.Equal(t, []string{"3", "2", "1"}, ids(svc.GetAll()))
	assert.Equal(t, []string{"3", "1"}, ids(svc.GetByService("user-service")))
	assert.Empty(t, svc.GetByService("unknown"))
	assert.Equal(t, []string{"3"}, ids(svc.GetByLevel("error")))
	assert.Equal(t, []string{"2", "1"}, ids(svc.GetByLevel("INFO")))

	stats := svc.GetStats()
	assert.Equal(t, 3, stats.TotalLogs)
	assert.Equal(t, map[string]int{"user-service": 2, "create-user-service": 1}, stats.LogsByService)
	assert.Equal(t, map[events.Level]int{events.LevelInfo: 2, events.LevelError: 1}, stats.LogsByLevel)
	assert.Equal(t, []string{"3", "2", "1"}, ids(stats.RecentLogs))

	t.Run("unknown level matches exactly", func(t *testing.T) {
		st := seededStore()
		st.Append(record("4", "user-service", "trace", events.Level("trace")))
		svc := NewService(st, nil, zerolog.Nop())

		assert.Equal(t, 1, svc.GetStats().LogsByLevel[events.Level("trace")])
		assert.Equal(t, []string{"4"}, ids(svc.GetByLevel("trace")))
		assert.Empty(t, svc.GetByLevel("TRACE"))
	})
}

func TestService_SearchRejectsEmptyText(t *testing.T) {
	searcher := &MockSearcher{}
	svc := NewService(seededStore(), searcher, zerolog.Nop())

	for _, text := range []string{"", "   ", "\t\n"} {
		result, err := svc.Search(context.Background(), text)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestService_SearchUsesBackend(t *testing.T) {
	searcher := &MockSearcher{}
	expected := &sink.SearchResult{Total: 1, Hits: []model.LogRecord{record("9", "user-service", "getUsers", events.LevelInfo)}}
	searcher.On("Search", mock.Anything, "getUsers").Return(expected, nil)

	svc := NewService(seededStore(), searcher, zerolog.Nop())

	result, err := svc.Search(context.Background(), "  getUsers ")
	require.NoError(t, err)
	assert.Same(t, expected, result)
	assert.True(t, svc.SearchEnabled())
}

func TestService_SearchSurfacesBackendError(t *testing.T) {
	searcher := &MockSearcher{}
	backendErr := fmt.Errorf("%w: connection refused", sink.ErrBackend)
	searcher.On("Search", mock.Anything, "user").Return(nil, backendErr)

	svc := NewService(seededStore(), searcher, zerolog.Nop())

	result, err := svc.Search(context.Background(), "user")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, sink.ErrBackend)
	assert.False(t, errors.Is(err, ErrInvalidQuery))
}

func TestService_SearchFallsBackToRecentStore(t *testing.T) {
	svc := NewService(seededStore(), nil, zerolog.Nop())
	assert.False(t, svc.SearchEnabled())

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{name: "by service", text: "create-user", expected: []string{"2"}},
		{name: "by action case-insensitive", text: "DELETEUSER", expected: []string{"3"}},
		{name: "by level", text: "error", expected: []string{"3"}},
		{name: "by message", text: "user-service: get", expected: []string{"1"}},
		{name: "matches several", text: "user", expected: []string{"3", "2", "1"}},
		{name: "no match", text: "payments", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Search(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.expected)), result.Total)
			assert.Equal(t, tt.expected, ids(result.Hits))
		})
	}
}

func TestService_SearchFallbackIsCapped(t *testing.T) {
	s := store.New(DefaultSearchLimit + 20)
	for i := 0; i < DefaultSearchLimit+20; i++ {
		s.Append(record(fmt.Sprint(i), "user-service", "getUsers", events.LevelInfo))
	}
	svc := NewService(s, nil, zerolog.Nop())

	result, err := svc.Search(context.Background(), "getUsers")
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultSearchLimit+20), result.Total)
	assert.Len(t, result.Hits, DefaultSearchLimit)
	assert.Equal(t, fmt.Sprint(DefaultSearchLimit+19), result.Hits[0].ID)
}

func TestService_GetBackendStats(t *testing.T) {
	t.Run("disabled backend", func(t *testing.T) {
		svc := NewService(seededStore(), nil, zerolog.Nop())
		stats := svc.GetBackendStats(context.Background())
		assert.True(t, stats.Degraded())
		assert.Equal(t, "search backend disabled", stats.Error)
	})

	t.Run("degraded backend", func(t *testing.T) {
		searcher := &MockSearcher{}
		searcher.On("Stats", mock.Anything).Return(sink.BackendStats{Error: "could not retrieve statistics"})
		svc := NewService(seededStore(), searcher, zerolog.Nop())

		stats := svc.GetBackendStats(context.Background())
		assert.True(t, stats.Degraded())
	})

	t.Run("healthy backend", func(t *testing.T) {
		searcher := &MockSearcher{}
		expected := sink.BackendStats{
			TotalLogs:     3,
			LogsByService: []sink.Bucket{{Key: "user-service", Count: 2}, {Key: "create-user-service", Count: 1}},
		}
		searcher.On("Stats", mock.Anything).Return(expected)
		svc := NewService(seededStore(), searcher, zerolog.Nop())

		assert.Equal(t, expected, svc.GetBackendStats(context.Background()))
	})
}
