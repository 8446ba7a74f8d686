// Package statushttp serves the read-only operational API: open positions,
// recent trades, risk state, and Prometheus metrics. Nothing here mutates
// trading state.
package statushttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"palisade/internal/gateway/exchange"
	"palisade/internal/logger"
	"palisade/internal/position"
	"palisade/internal/risk"
	"palisade/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig describes the status server dependencies.
type ServerConfig struct {
	Addr   string
	Ledger *position.Ledger
	Risk   *risk.Manager
	Store  store.Store
	// Account supplies the live quote balance so breaker checks never see a
	// zero equity right after a day rollover.
	Account      exchange.AccountSource
	Halted       func() bool
	OrderBreaker func() string
	Started      time.Time
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Ledger == nil || cfg.Risk == nil {
		return nil, errors.New("status http server requires ledger and risk manager")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9982"
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handlers{cfg: cfg}
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/positions", h.positions)
	api.GET("/risk", h.riskState)
	api.GET("/trades", h.trades)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) health(c *gin.Context) {
	halted := false
	if h.cfg.Halted != nil {
		halted = h.cfg.Halted()
	}
	body := gin.H{
		"status":         "ok",
		"entries_halted": halted,
		"uptime":         time.Since(h.cfg.Started).Truncate(time.Second).String(),
	}
	if h.cfg.OrderBreaker != nil {
		body["order_breaker"] = h.cfg.OrderBreaker()
	}
	c.JSON(http.StatusOK, body)
}

type positionView struct {
	Symbol         string    `json:"symbol"`
	EntryPrice     float64   `json:"entry_price"`
	AvgEntryPrice  float64   `json:"avg_entry_price"`
	Quantity       float64   `json:"quantity"`
	EntryTime      time.Time `json:"entry_time"`
	HighWaterPrice float64   `json:"high_water_price"`
	PyramidCount   int       `json:"pyramid_count"`
	Recovered      bool      `json:"recovered"`
}

func (h *handlers) positions(c *gin.Context) {
	open := h.cfg.Ledger.List()
	out := make([]positionView, 0, len(open))
	for _, pos := range open {
		out = append(out, positionView{
			Symbol:         pos.Symbol,
			EntryPrice:     pos.EntryPrice,
			AvgEntryPrice:  pos.AvgEntryPrice,
			Quantity:       pos.Quantity,
			EntryTime:      pos.EntryTime,
			HighWaterPrice: pos.HighWaterPrice,
			PyramidCount:   pos.PyramidCount,
			Recovered:      pos.Recovered,
		})
	}
	c.JSON(http.StatusOK, gin.H{"positions": out, "count": len(out)})
}

func (h *handlers) riskState(c *gin.Context) {
	now := time.Now()
	equity := 0.0
	if h.cfg.Account != nil {
		bal, err := h.cfg.Account.QuoteBalance(c.Request.Context())
		if err != nil {
			logger.Warnf("status: quote balance unavailable: %v", err)
		} else {
			equity = bal
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":          h.cfg.Risk.Tracker().Snapshot(),
		"daily_pnl":      h.cfg.Risk.DailyPnL(now, equity),
		"breaker_active": h.cfg.Risk.BreakerActive(now, equity),
	})
}

func (h *handlers) trades(c *gin.Context) {
	if h.cfg.Store == nil {
		c.JSON(http.StatusOK, gin.H{"trades": []store.TradeRecord{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.cfg.Store.ListTradeRecords(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": records})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
