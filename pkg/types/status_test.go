package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusRouting, false},
		{StatusBuilding, false},
		{StatusSubmitted, false},
		{StatusConfirmed, true},
		{StatusFailed, true},
		{Status("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestStatus_RankIsMonotonicOverLifecycle(t *testing.T) {
	for i := 1; i < len(LifecycleStatuses); i++ {
		assert.Less(t, LifecycleStatuses[i-1].Rank(), LifecycleStatuses[i].Rank())
	}

	assert.Equal(t, StatusConfirmed.Rank(), StatusFailed.Rank())
	assert.Greater(t, StatusConfirmed.Rank(), StatusSubmitted.Rank())
	assert.Equal(t, -1, Status("settled").Rank())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("routing")
	require.NoError(t, err)
	assert.Equal(t, StatusRouting, s)

	_, err = ParseStatus("ROUTING")
	assert.Error(t, err)

	_, err = ParseStatus("")
	assert.Error(t, err)
}

func TestStatusEvent_Price(t *testing.T) {
	assert.Equal(t, 0.0, StatusEvent{}.Price())
	assert.Equal(t, 218.5, StatusEvent{ExecutionPrice: Float64Ptr(218.5)}.Price())
}
