package escrow

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRefundBookkeeping(t *testing.T) {
	l := NewLedger(eth(10))
	require.NoError(t, l.RecordContribution(alice, eth(2)))
	require.NoError(t, l.RecordContribution(alice, eth(1)))

	amount, err := l.takeRefund(alice)
	require.NoError(t, err)
	assert.Equal(t, eth(3).Dec(), amount.Dec())
	assert.True(t, l.ContributionOf(alice).IsZero())
	assert.True(t, l.HasRefunded(alice))
	assert.True(t, l.IsContributor(alice))
	assert.Equal(t, eth(3).Dec(), l.TotalRaised().Dec())

	l.restoreRefund(alice, amount)
	assert.False(t, l.HasRefunded(alice))
	assert.True(t, l.Refunded().IsZero())
	assert.Equal(t, eth(3).Dec(), l.ContributionOf(alice).Dec())

	_, err = l.takeRefund(bob)
	require.ErrorIs(t, err, ErrPhaseViolation)
}

func TestLedgerOverflowIsLimitExceeded(t *testing.T) {
	top := new(uint256.Int).SetAllOne()
	l := NewLedger(top)
	require.NoError(t, l.RecordContribution(alice, top))
	err := l.RecordContribution(bob, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestScheduleReleaseOrder(t *testing.T) {
	s, err := NewSchedule(eth(10), []MilestoneSpec{{Amount: eth(4)}, {Amount: eth(6)}})
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0).UTC()

	_, err = s.MarkReleased(0, now)
	require.ErrorIs(t, err, ErrPhaseViolation)

	require.NoError(t, s.MarkCompleted(0, now))
	amount, err := s.MarkReleased(0, now)
	require.NoError(t, err)
	assert.Equal(t, eth(4).Dec(), amount.Dec())
	_, err = s.MarkReleased(0, now)
	require.ErrorIs(t, err, ErrAlreadyDone)

	assert.Equal(t, eth(10).Dec(), s.Total().Dec())
	assert.Equal(t, eth(4).Dec(), s.ReleasedTotal().Dec())

	s.unmarkReleased(0)
	assert.True(t, s.ReleasedTotal().IsZero())

	_, err = s.Get(-1)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "LimitExceeded", KindOf(fail(ErrLimitExceeded, "x")))
	assert.Equal(t, "TransferFailure", KindOf(fmt.Errorf("%w: boom", ErrTransferFailure)))
	assert.Equal(t, "", KindOf(errors.New("other")))
	assert.Equal(t, "", KindOf(nil))
}
