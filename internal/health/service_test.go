package health

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	logger := zerolog.Nop()
	s := NewService(&logger)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestService_StatusTransitions(t *testing.T) {
	s := newTestService()
	s.Register(CategoryRegistries, "radarr", "radarr")

	assert.True(t, s.Report().Healthy)

	s.SetError(CategoryRegistries, "radarr", "connection refused")
	item := s.Get(CategoryRegistries, "radarr")
	require.NotNil(t, item)
	assert.Equal(t, StatusError, item.Status)
	assert.NotNil(t, item.Timestamp)
	assert.False(t, s.Report().Healthy)

	s.ClearStatus(CategoryRegistries, "radarr")
	item = s.Get(CategoryRegistries, "radarr")
	assert.Equal(t, StatusOK, item.Status)
	assert.Nil(t, item.Timestamp)
	assert.True(t, s.Report().Healthy)
}

func TestService_RegisterKeepsStatus(t *testing.T) {
	s := newTestService()
	s.Register(CategoryAnalyzer, "dovi_tool", "dovi_tool")
	s.SetWarning(CategoryAnalyzer, "dovi_tool", "not found")
	s.Register(CategoryAnalyzer, "dovi_tool", "dovi_tool")

	assert.Equal(t, StatusWarning, s.Get(CategoryAnalyzer, "dovi_tool").Status)
}

func TestService_UnregisteredIgnored(t *testing.T) {
	s := newTestService()
	s.SetError(CategoryRules, "missing", "boom")
	assert.Nil(t, s.Get(CategoryRules, "missing"))
}

func TestReport_SortedAndMarshaled(t *testing.T) {
	s := newTestService()
	s.Register(CategoryRegistries, "b", "b")
	s.Register(CategoryRegistries, "a", "a")
	s.SetError(CategoryRegistries, "b", "down")

	r := s.Report()
	require.Len(t, r.Categories[CategoryRegistries], 2)
	assert.Equal(t, "a", r.Categories[CategoryRegistries][0].ID)

	data, err := json.Marshal(r.Categories[CategoryRegistries][0])
	require.NoError(t, err)
	assert.NotContains(t, string(data), "timestamp")

	data, err = json.Marshal(r.Categories[CategoryRegistries][1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"down"`)
}
