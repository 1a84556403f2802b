package epoch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blendizzard/block-server/epoch"
	"github.com/blendizzard/block-server/internal/nktest"
)

func TestCreateInitialEpochAndGetEpoch(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, now.Unix(), 86400))

	e, err := epoch.GetEpoch(context.Background(), nk, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, e.EpochNumber)
	assert.Equal(t, now.Unix()+86400, e.EndTime)
	assert.False(t, e.IsFinalized)
}

func TestGetEpochUnknownIsInvalidInput(t *testing.T) {
	nk := nktest.New()
	_, err := epoch.GetEpoch(context.Background(), nk, 7)
	assert.Error(t, err)
}

func TestCreditStandingAccumulates(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, now.Unix(), 86400))

	require.NoError(t, epoch.CreditStanding(context.Background(), nk, 0, 1, 100, now))
	require.NoError(t, epoch.CreditStanding(context.Background(), nk, 0, 1, 50, now))

	standings, err := epoch.GetFactionStandings(context.Background(), nk, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 150, standings[1])
}

func TestGetWinningFactionNoneWhenNoStandings(t *testing.T) {
	nk := nktest.New()
	now := time.Now()
	require.NoError(t, epoch.CreateInitialEpoch(context.Background(), nk, now.Unix(), 86400))
	_, has, err := epoch.GetWinningFaction(context.Background(), nk, 0)
	require.NoError(t, err)
	assert.False(t, has)
}
