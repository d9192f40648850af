package reward

import (
	"context"
	"testing"

	"github.com/blues/cfs-escrow/internal/database"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	campaign = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newMinter(t *testing.T, minAmount uint64) *Minter {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return NewMinter(db, uint256.NewInt(minAmount))
}

func TestIssueRewardOncePerContributor(t *testing.T) {
	m := newMinter(t, 0)
	ctx := context.Background()

	id, err := m.IssueReward(ctx, campaign, alice, uint256.NewInt(7), "garden", 1)
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = m.IssueReward(ctx, campaign, alice, uint256.NewInt(7), "garden", 1)
	require.ErrorIs(t, err, ErrAlreadyIssued)

	second, err := m.IssueReward(ctx, campaign, bob, uint256.NewInt(3), "garden", 2)
	require.NoError(t, err)
	assert.Greater(t, second, id)

	token, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, alice.Hex(), token.Contributor)
	assert.Equal(t, "7", token.Amount)
	assert.Equal(t, "garden", token.CampaignName)

	tokens, err := m.ListByCampaign(ctx, campaign)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, uint64(1), tokens[0].Seq)

	mine, err := m.ListByContributor(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestIssueRewardMinimum(t *testing.T) {
	m := newMinter(t, 5)
	_, err := m.IssueReward(context.Background(), campaign, alice, uint256.NewInt(4), "garden", 1)
	require.ErrorIs(t, err, ErrBelowMinimum)

	_, err = m.IssueReward(context.Background(), campaign, alice, uint256.NewInt(5), "garden", 1)
	require.NoError(t, err)
}
