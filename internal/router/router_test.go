package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/database"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/handler"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, mode string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenMemory()
	require.NoError(t, err)
	bank := chain.NewBank()
	clock := chain.NewManualClock(time.Now())
	reg := registry.New(common.HexToAddress("0xcf5e5"), escrow.Deps{Clock: clock, Bank: bank, Emitter: escrow.NoopEmitter{}})
	store := logic.NewStore(db, bank, reg)

	cfg := &config.Config{Server: config.ServerConfig{Mode: mode}}
	return Setup(cfg, Deps{
		DB:        db,
		Campaigns: logic.NewCampaignLogic(reg, store),
		Accounts:  logic.NewAccountLogic(bank, store, clock, nil),
	})
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newEngine(t, "debug")

	w := serve(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(0), health["campaigns"])

	w = serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(t, "debug")
	w := serve(r, http.MethodOptions, "/api/v1/campaigns", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), handler.SenderHeader)
}

func TestDevRoutesFollowMode(t *testing.T) {
	const path = "/api/v1/dev/accounts/0x0000000000000000000000000000000000000001/fund"

	w := serve(newEngine(t, "debug"), http.MethodPost, path, `{"amount":"10"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(newEngine(t, "release"), http.MethodPost, path, `{"amount":"10"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCampaignRoutes(t *testing.T) {
	r := newEngine(t, "debug")
	w := serve(r, http.MethodGet, "/api/v1/campaigns", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                         `json:"success"`
		Data    handler.CampaignListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Zero(t, resp.Data.Total)

	w = serve(r, http.MethodGet, "/api/v1/campaigns/0x0000000000000000000000000000000000000bad/milestones", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
