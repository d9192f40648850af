package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/database"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/blues/cfs-escrow/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

var (
	campaignAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	creator      = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	beneficiary  = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	alice        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

func newDispatcher(t *testing.T) (*Dispatcher, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	d, err := NewDispatcher(db, NewDefaultProcessors(db, NewMetricsProcessor(metrics.Escrow())), 4)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return d, db
}

func newCampaign(t *testing.T, d *Dispatcher, milestones ...uint64) (*escrow.Campaign, *chain.Bank, *chain.ManualClock) {
	t.Helper()
	bank := chain.NewBank()
	clock := chain.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	specs := make([]escrow.MilestoneSpec, 0, len(milestones))
	for _, m := range milestones {
		specs = append(specs, escrow.MilestoneSpec{Description: "stage", Amount: uint256.NewInt(m)})
	}
	c, err := escrow.New(escrow.Params{
		Address:     campaignAddr,
		Name:        "solar roof",
		Creator:     creator,
		Beneficiary: beneficiary,
		Duration:    time.Hour,
		FundingCap:  uint256.NewInt(100),
		Milestones:  specs,
	}, escrow.Deps{Clock: clock, Bank: bank, Emitter: d})
	require.NoError(t, err)
	require.NoError(t, bank.Credit(alice, uint256.NewInt(100)))
	require.NoError(t, bank.Credit(bob, uint256.NewInt(100)))
	return c, bank, clock
}

func TestDispatcherProjectsRecords(t *testing.T) {
	d, db := newDispatcher(t)
	c, _, clock := newCampaign(t, d, 60, 40)
	ctx := context.Background()

	require.NoError(t, c.Contribute(ctx, alice, uint256.NewInt(70)))
	require.NoError(t, c.Contribute(ctx, bob, uint256.NewInt(30)))
	clock.Advance(2 * time.Hour)
	_, err := c.Finalize(ctx)
	require.NoError(t, err)
	require.NoError(t, c.CompleteMilestone(creator, 0))
	_, err = c.ReleaseMilestoneFunds(ctx, 0)
	require.NoError(t, err)
	_, err = c.PostUpdate(creator, "stage one done", "bafyhash", 0)
	require.NoError(t, err)
	d.Wait()

	var events []model.EventModel
	require.NoError(t, db.Order("seq ASC").Find(&events).Error)
	require.NotEmpty(t, events)
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Seq, "seq is gapless")
		assert.Equal(t, campaignAddr.Hex(), e.CampaignAddress)
		assert.Equal(t, chain.Topic(e.EventType).Hex(), e.Topic)
		assert.True(t, e.Processed, e.EventType)
	}
	assert.Equal(t, escrow.EventCampaignCreated, events[0].EventType)

	var attrs map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &attrs))
	assert.Equal(t, "solar roof", attrs["name"])

	var contributions []model.ContributeRecordModel
	require.NoError(t, db.Order("event_seq ASC").Find(&contributions).Error)
	require.Len(t, contributions, 2)
	assert.Equal(t, alice.Hex(), contributions[0].Address)
	assert.Equal(t, "70", contributions[0].Amount)
	assert.Equal(t, "100", contributions[1].TotalRaised)

	var settlements []model.SettlementRecordModel
	require.NoError(t, db.Find(&settlements).Error)
	require.Len(t, settlements, 1)
	assert.Equal(t, model.SettlementTypeMilestone, settlements[0].SettlementType)
	assert.Equal(t, 0, settlements[0].MilestoneId)
	assert.Equal(t, "60", settlements[0].Amount)
	assert.Equal(t, beneficiary.Hex(), settlements[0].Beneficiary)

	var updates []model.CampaignUpdateModel
	require.NoError(t, db.Find(&updates).Error)
	require.Len(t, updates, 1)
	assert.Equal(t, "bafyhash", updates[0].ContentHash)
	assert.Equal(t, 0, updates[0].MilestoneId)
}

func TestDispatcherRefundAndLumpSum(t *testing.T) {
	d, db := newDispatcher(t)
	ctx := context.Background()

	failed, _, clock := newCampaign(t, d)
	require.NoError(t, failed.Contribute(ctx, alice, uint256.NewInt(10)))
	clock.Advance(2 * time.Hour)
	_, err := failed.Finalize(ctx)
	require.NoError(t, err)
	_, err = failed.ClaimRefund(ctx, alice)
	require.NoError(t, err)
	d.Wait()

	var refunds []model.RefundRecordModel
	require.NoError(t, db.Find(&refunds).Error)
	require.Len(t, refunds, 1)
	assert.Equal(t, "10", refunds[0].Amount)
	assert.Equal(t, model.RefundStatusSuccess, refunds[0].Status)

	// 同一地址的第二个活动使用独立的库，避免 seq 冲突
	d2, db2 := newDispatcher(t)
	funded, _, clock2 := newCampaign(t, d2)
	require.NoError(t, funded.Contribute(ctx, alice, uint256.NewInt(100)))
	clock2.Advance(2 * time.Hour)
	_, err = funded.Finalize(ctx)
	require.NoError(t, err)
	_, err = funded.ReleaseAllFunds(ctx, creator)
	require.NoError(t, err)
	d2.Wait()

	var settlements []model.SettlementRecordModel
	require.NoError(t, db2.Find(&settlements).Error)
	require.Len(t, settlements, 1)
	assert.Equal(t, model.SettlementTypeLumpSum, settlements[0].SettlementType)
	assert.Equal(t, -1, settlements[0].MilestoneId)
	assert.Equal(t, "100", settlements[0].Amount)
}

type failingProcessor struct{ calls int }

func (p *failingProcessor) GetEventTypes() []string { return []string{escrow.EventCampaignCreated} }

func (p *failingProcessor) Process(*model.EventModel, escrow.Event) error {
	p.calls++
	return errors.New("projection down")
}

type countingProcessor struct {
	mu   sync.Mutex
	seen []string
}

func (p *countingProcessor) GetEventTypes() []string { return []string{AnyEvent} }

func (p *countingProcessor) Process(_ *model.EventModel, evt escrow.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, evt.Type)
	return nil
}

func TestProcessorManager(t *testing.T) {
	failing := &failingProcessor{}
	counting := &countingProcessor{}
	pm := NewProcessorManager(failing, counting)

	assert.Equal(t, []string{AnyEvent, escrow.EventCampaignCreated}, pm.GetSupportedEventTypes())
	assert.Len(t, pm.GetProcessors(escrow.EventCampaignCreated), 2)
	assert.Len(t, pm.GetProcessors(escrow.EventVoteCast), 1)

	err := pm.ProcessEvent(&model.EventModel{}, escrow.Event{Type: escrow.EventCampaignCreated})
	require.ErrorContains(t, err, "projection down")
	require.NoError(t, pm.ProcessEvent(&model.EventModel{}, escrow.Event{Type: escrow.EventVoteCast}))
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, []string{escrow.EventCampaignCreated, escrow.EventVoteCast}, counting.seen)
}

func TestFailedProjectionLeavesEventUnprocessed(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	d, err := NewDispatcher(db, NewProcessorManager(&failingProcessor{}), 1)
	require.NoError(t, err)
	defer d.Close()

	d.Emit(escrow.Event{Campaign: campaignAddr, Seq: 1, Type: escrow.EventCampaignCreated, Time: time.Now()})
	d.Wait()

	var row model.EventModel
	require.NoError(t, db.First(&row).Error)
	assert.False(t, row.Processed)
}

// flakyProcessor 第一次失败，之后成功
type flakyProcessor struct {
	mu    sync.Mutex
	calls int
}

func (p *flakyProcessor) GetEventTypes() []string { return []string{AnyEvent} }

func (p *flakyProcessor) Process(*model.EventModel, escrow.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == 1 {
		return errors.New("temporarily down")
	}
	return nil
}

func TestReplayRetriesUnprocessedEvents(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	flaky := &flakyProcessor{}
	d, err := NewDispatcher(db, NewProcessorManager(flaky), 1)
	require.NoError(t, err)
	defer d.Close()

	d.Emit(escrow.Event{Campaign: campaignAddr, Seq: 1, Type: escrow.EventUpdatePosted, Time: time.Now(),
		Attributes: map[string]string{"title": "hello"}})
	d.Wait()

	// 太新的事件不重放
	n, err := d.Replay(context.Background(), time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = d.Replay(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, flaky.calls)

	var row model.EventModel
	require.NoError(t, db.First(&row).Error)
	assert.True(t, row.Processed)

	n, err = d.Replay(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcherDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	db, err := database.OpenMemory()
	require.NoError(t, err)
	d, err := NewDispatcher(db, NewProcessorManager(&countingProcessor{}), 2)
	require.NoError(t, err)
	for i := 1; i <= 20; i++ {
		d.Emit(escrow.Event{Campaign: campaignAddr, Seq: uint64(i), Type: escrow.EventVoteCast, Time: time.Now()})
	}
	require.NoError(t, d.Close())
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
