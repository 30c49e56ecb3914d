package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"daily", ModeDaily, false},
		{"DAILY", ModeDaily, false},
		{" single ", ModeSingle, false},
		{"weekly", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestCurrentID(t *testing.T) {
	now := time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, SinglePoolID, ModeSingle.CurrentID(now))
	assert.Equal(t, PoolID("2024-01-10"), ModeDaily.CurrentID(now))
}

func TestResolve(t *testing.T) {
	id, err := ModeSingle.Resolve("not-a-date")
	require.NoError(t, err)
	assert.Equal(t, SinglePoolID, id)

	id, err = ModeDaily.Resolve("2024-01-09")
	require.NoError(t, err)
	assert.Equal(t, PoolID("2024-01-09"), id)

	_, err = ModeDaily.Resolve("../server_data")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
