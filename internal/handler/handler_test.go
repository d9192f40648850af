package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/database"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/event"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/blues/cfs-escrow/internal/reward"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	creatorHex     = "0x00000000000000000000000000000000000000A0"
	beneficiaryHex = "0x00000000000000000000000000000000000000B0"
	aliceHex       = "0x0000000000000000000000000000000000000001"
)

type testServer struct {
	engine     *gin.Engine
	clock      *chain.ManualClock
	dispatcher *event.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	bank := chain.NewBank()
	clock := chain.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	dispatcher, err := event.NewDispatcher(db, event.NewDefaultProcessors(db, nil), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dispatcher.Close() })

	minter := reward.NewMinter(db, nil)
	reg := registry.New(common.HexToAddress("0xcf5e5"), escrow.Deps{Clock: clock, Bank: bank, Emitter: dispatcher, Reward: minter})
	store := logic.NewStore(db, bank, reg)

	campaigns := NewCampaignHandler(logic.NewCampaignLogic(reg, store), true)
	accounts := NewAccountHandler(logic.NewAccountLogic(bank, store, clock, minter))
	records := NewRecordHandler(
		logic.NewContributeRecordLogic(db),
		logic.NewRefundRecordLogic(db),
		logic.NewSettlementRecordLogic(db),
		logic.NewEventLogic(db),
	)

	r := gin.New()
	r.POST("/campaigns", campaigns.CreateCampaign)
	r.GET("/campaigns", campaigns.GetCampaigns)
	r.GET("/campaigns/:address", campaigns.GetCampaign)
	r.POST("/campaigns/:address/contributions", campaigns.Contribute)
	r.GET("/campaigns/:address/contributions", records.GetCampaignContributions)
	r.POST("/campaigns/:address/finalize", campaigns.Finalize)
	r.POST("/campaigns/:address/milestones/:id/complete", campaigns.CompleteMilestone)
	r.POST("/campaigns/:address/milestones/:id/release", campaigns.ReleaseMilestone)
	r.POST("/campaigns/:address/updates", campaigns.PostUpdate)
	r.GET("/campaigns/:address/updates/:id", campaigns.GetUpdate)
	r.GET("/accounts/:address", accounts.GetAccount)
	r.GET("/accounts/:address/rewards", accounts.GetRewards)
	r.POST("/dev/accounts/:address/fund", accounts.Fund)
	r.POST("/dev/clock/advance", accounts.AdvanceClock)
	return &testServer{engine: r, clock: clock, dispatcher: dispatcher}
}

type decoded struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, from string, body interface{}) (int, decoded) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if from != "" {
		req.Header.Set(SenderHeader, from)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp decoded
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (s *testServer) createCampaign(t *testing.T) string {
	t.Helper()
	status, resp := s.do(t, http.MethodPost, "/campaigns", creatorHex, gin.H{
		"name":            "school roof",
		"beneficiary":     beneficiaryHex,
		"durationSeconds": 3600,
		"fundingCap":      "100",
		"milestones":      []gin.H{{"description": "all", "amount": "100"}},
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	var campaign CampaignResponse
	require.NoError(t, json.Unmarshal(resp.Data, &campaign))
	assert.Equal(t, "open", campaign.State)
	assert.Equal(t, 1, campaign.MilestoneCount)
	return campaign.Address
}

func TestCreateCampaignValidation(t *testing.T) {
	s := newTestServer(t)

	status, resp := s.do(t, http.MethodPost, "/campaigns", "", gin.H{"beneficiary": beneficiaryHex})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeBadRequest, resp.Code)

	status, resp = s.do(t, http.MethodPost, "/campaigns", creatorHex, gin.H{
		"beneficiary":     beneficiaryHex,
		"durationSeconds": 3600,
		"fundingCap":      "lots",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, resp.Success)

	// 里程碑总额超出目标额
	status, resp = s.do(t, http.MethodPost, "/campaigns", creatorHex, gin.H{
		"beneficiary":     beneficiaryHex,
		"durationSeconds": 3600,
		"fundingCap":      "100",
		"milestones":      []gin.H{{"amount": "60"}, {"amount": "50"}},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "InvalidParameter", resp.Code)

	// 秒数换算纳秒会溢出，不能回绕成极短的募资期
	for _, secs := range []int64{18446744074, maxDurationSeconds + 1, -1} {
		status, resp = s.do(t, http.MethodPost, "/campaigns", creatorHex, gin.H{
			"beneficiary":     beneficiaryHex,
			"durationSeconds": secs,
			"fundingCap":      "100",
		})
		assert.Equal(t, http.StatusBadRequest, status, "durationSeconds=%d", secs)
		assert.Equal(t, CodeBadRequest, resp.Code)
	}
	status, resp = s.do(t, http.MethodGet, "/campaigns", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list CampaignListResponse
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Zero(t, list.Total)
}

func TestContributeFlow(t *testing.T) {
	s := newTestServer(t)
	addr := s.createCampaign(t)

	// 余额不足
	status, resp := s.do(t, http.MethodPost, "/campaigns/"+addr+"/contributions", aliceHex, gin.H{"amount": "40"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "TransferFailure", resp.Code)

	status, _ = s.do(t, http.MethodPost, "/dev/accounts/"+aliceHex+"/fund", "", gin.H{"amount": "150"})
	require.Equal(t, http.StatusOK, status)

	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/contributions", aliceHex, gin.H{"amount": "40"})
	require.Equal(t, http.StatusOK, status, resp.Message)
	var contribution ContributionResponse
	require.NoError(t, json.Unmarshal(resp.Data, &contribution))
	assert.Equal(t, "40", contribution.Amount)

	// 超出目标额
	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/contributions", aliceHex, gin.H{"amount": "61"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "LimitExceeded", resp.Code)

	status, resp = s.do(t, http.MethodGet, "/accounts/"+aliceHex, "", nil)
	require.Equal(t, http.StatusOK, status)
	var account AccountResponse
	require.NoError(t, json.Unmarshal(resp.Data, &account))
	assert.Equal(t, "110", account.Balance)

	s.dispatcher.Wait()
	status, resp = s.do(t, http.MethodGet, "/campaigns/"+addr+"/contributions?page=1&page_size=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	var paged struct {
		Records    []ContributeRecordResponse `json:"records"`
		Pagination Pagination                 `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &paged))
	require.Len(t, paged.Records, 1)
	assert.Equal(t, "40", paged.Records[0].Amount)
	assert.Equal(t, int64(1), paged.Pagination.Total)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	addr := s.createCampaign(t)

	status, resp := s.do(t, http.MethodGet, "/campaigns/0x000000000000000000000000000000000000dEaD", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, resp.Code)

	status, _ = s.do(t, http.MethodGet, "/campaigns/not-an-address", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/finalize", "", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PhaseViolation", resp.Code)

	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/milestones/0/complete", aliceHex, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Unauthorized", resp.Code)

	status, _ = s.do(t, http.MethodPost, "/campaigns/"+addr+"/milestones/x/complete", creatorHex, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSettleAndReleaseFlow(t *testing.T) {
	s := newTestServer(t)
	addr := s.createCampaign(t)
	s.do(t, http.MethodPost, "/dev/accounts/"+aliceHex+"/fund", "", gin.H{"amount": "100"})
	status, _ := s.do(t, http.MethodPost, "/campaigns/"+addr+"/contributions", aliceHex, gin.H{"amount": "100"})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/dev/clock/advance", "", gin.H{"seconds": 3601})
	require.Equal(t, http.StatusOK, status)

	status, resp := s.do(t, http.MethodPost, "/campaigns/"+addr+"/finalize", "", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	var result FinalizeResponse
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Successful)
	assert.Equal(t, 1, result.RewardsIssued)

	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/finalize", "", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PhaseViolation", resp.Code)

	status, _ = s.do(t, http.MethodPost, "/campaigns/"+addr+"/milestones/0/complete", creatorHex, nil)
	require.Equal(t, http.StatusOK, status)
	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/milestones/0/release", "", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)

	status, resp = s.do(t, http.MethodGet, "/accounts/"+beneficiaryHex, "", nil)
	require.Equal(t, http.StatusOK, status)
	var account AccountResponse
	require.NoError(t, json.Unmarshal(resp.Data, &account))
	assert.Equal(t, "100", account.Balance)

	status, resp = s.do(t, http.MethodGet, "/accounts/"+aliceHex+"/rewards", "", nil)
	require.Equal(t, http.StatusOK, status)
	var tokens []RewardTokenResponse
	require.NoError(t, json.Unmarshal(resp.Data, &tokens))
	assert.Len(t, tokens, 1)
}

func TestUpdates(t *testing.T) {
	s := newTestServer(t)
	addr := s.createCampaign(t)

	status, resp := s.do(t, http.MethodPost, "/campaigns/"+addr+"/updates", aliceHex, gin.H{"title": "hi"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Unauthorized", resp.Code)

	status, resp = s.do(t, http.MethodPost, "/campaigns/"+addr+"/updates", creatorHex, gin.H{"title": "kickoff", "contentHash": "QmHash"})
	require.Equal(t, http.StatusCreated, status, resp.Message)

	status, resp = s.do(t, http.MethodGet, "/campaigns/"+addr+"/updates/0", "", nil)
	require.Equal(t, http.StatusOK, status)
	var update UpdateResponse
	require.NoError(t, json.Unmarshal(resp.Data, &update))
	assert.Equal(t, "kickoff", update.Title)
	assert.Nil(t, update.MilestoneID)

	status, _ = s.do(t, http.MethodGet, "/campaigns/"+addr+"/updates/9", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdvanceClockValidation(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodPost, "/dev/clock/advance", "", gin.H{"seconds": -5})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = s.do(t, http.MethodPost, "/dev/clock/advance", "", gin.H{"seconds": maxDurationSeconds + 1})
	assert.Equal(t, http.StatusBadRequest, status)
}
