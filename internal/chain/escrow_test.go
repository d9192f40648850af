package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectedRefundKeepsEscrowAndBankInStep(t *testing.T) {
	ctx := context.Background()
	b := NewBank()
	clock := NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	campaign := common.HexToAddress("0x00000000000000000000000000000000000c0ffe")
	carol := common.HexToAddress("0x00000000000000000000000000000000000ca401")

	c, err := escrow.New(escrow.Params{
		Address:     campaign,
		Name:        "roof",
		Creator:     common.HexToAddress("0xa0"),
		Beneficiary: common.HexToAddress("0xb0"),
		Duration:    time.Hour,
		FundingCap:  uint256.NewInt(100),
	}, escrow.Deps{Clock: clock, Bank: b})
	require.NoError(t, err)

	for _, who := range []common.Address{alice, bob} {
		require.NoError(t, b.Credit(who, uint256.NewInt(3)))
		require.NoError(t, c.Contribute(ctx, who, uint256.NewInt(3)))
	}
	clock.Advance(2 * time.Hour)
	res, err := c.Finalize(ctx)
	require.NoError(t, err)
	require.False(t, res.Successful)

	// 接收方先把退款转给第三方再拒收
	b.SetReceiver(alice, func(ctx context.Context, _ common.Address, amount *uint256.Int) error {
		_ = b.Transfer(ctx, alice, carol, amount)
		return errors.New("reverted")
	})
	_, err = c.ClaimRefund(ctx, alice)
	require.ErrorIs(t, err, escrow.ErrTransferFailure)
	assert.Equal(t, uint64(6), c.Summary().Balance.Uint64())
	assert.Equal(t, uint64(6), b.BalanceOf(campaign).Uint64())
	assert.True(t, b.BalanceOf(carol).IsZero())

	b.SetReceiver(alice, nil)
	amt, err := c.ClaimRefund(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), amt.Uint64())
	_, err = c.ClaimRefund(ctx, alice)
	require.ErrorIs(t, err, escrow.ErrAlreadyDone)

	amt, err = c.ClaimRefund(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), amt.Uint64())

	assert.Equal(t, uint64(3), b.BalanceOf(alice).Uint64())
	assert.Equal(t, uint64(3), b.BalanceOf(bob).Uint64())
	assert.True(t, b.BalanceOf(campaign).IsZero())
	assert.True(t, c.Summary().Balance.IsZero())
}
