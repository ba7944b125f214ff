// Package server exposes run status over HTTP in watch mode.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/0gfoundation/stake-reward-claimer/internal/claimer"
	"github.com/0gfoundation/stake-reward-claimer/internal/report"
)

// Store is the read side of report.Store and report.Memory.
type Store interface {
	LastRun(ctx context.Context, pool solana.PublicKey) (*claimer.Report, error)
	FailedEntries(ctx context.Context, pool solana.PublicKey, limit int64) ([]report.FailedRecord, error)
	Runs(ctx context.Context, pool solana.PublicKey) ([]report.RunSummary, error)
}

type Handler struct {
	store       Store
	defaultPool solana.PublicKey
	log         *zap.Logger
}

// NewHandler serves reports of defaultPool unless a request names another
// pool with ?pool=.
func NewHandler(store Store, defaultPool solana.PublicKey, log *zap.Logger) *Handler {
	return &Handler{store: store, defaultPool: defaultPool, log: log}
}

// NewRouter builds the engine with health, metrics and run routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r.Group("/api"))
	return r
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/runs", h.handleRuns)
	rg.GET("/runs/last", h.handleLastRun)
	rg.GET("/runs/failed", h.handleFailed)
}

func (h *Handler) handleLastRun(c *gin.Context) {
	pool, ok := h.pool(c)
	if !ok {
		return
	}
	r, err := h.store.LastRun(c.Request.Context(), pool)
	if errors.Is(err, report.ErrNoRun) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded", "pool": pool.String()})
		return
	}
	if err != nil {
		h.log.Error("read last run", zap.String("pool", pool.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) handleFailed(c *gin.Context) {
	pool, ok := h.pool(c)
	if !ok {
		return
	}
	var limit int64 = 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	recs, err := h.store.FailedEntries(c.Request.Context(), pool, limit)
	if err != nil {
		h.log.Error("read failed entries", zap.String("pool", pool.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": pool.String(), "failed": recs})
}

func (h *Handler) handleRuns(c *gin.Context) {
	pool, ok := h.pool(c)
	if !ok {
		return
	}
	runs, err := h.store.Runs(c.Request.Context(), pool)
	if err != nil {
		h.log.Error("read runs", zap.String("pool", pool.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pool": pool.String(), "runs": runs})
}

// pool resolves the pool query parameter, writing a 400 when it is invalid.
func (h *Handler) pool(c *gin.Context) (solana.PublicKey, bool) {
	s := c.Query("pool")
	if s == "" {
		if h.defaultPool.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pool is required"})
			return solana.PublicKey{}, false
		}
		return h.defaultPool, true
	}
	pool, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pool"})
		return solana.PublicKey{}, false
	}
	return pool, true
}
