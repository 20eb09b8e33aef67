package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"koalaswap/internal/koala"
	"koalaswap/internal/metrics"
	"koalaswap/internal/model"
)

// BasePath prefixes every connector route.
const BasePath = "/connectors/koala-swap"

// Orchestrator is the operation surface served over HTTP. *koala.Service satisfies it.
type Orchestrator interface {
	Networks() []string
	PoolInfo(ctx context.Context, kind model.PoolKind, req koala.PoolRequest) (model.PoolInfo, error)
	QuoteSwap(ctx context.Context, kind model.PoolKind, req koala.SwapRequest) (model.SwapQuote, error)
	ExecuteSwap(ctx context.Context, kind model.PoolKind, req koala.SwapRequest) (model.SwapResult, error)
	QuoteLiquidity(ctx context.Context, req koala.AddLiquidityRequest) (model.LiquidityQuote, error)
	AddLiquidity(ctx context.Context, req koala.AddLiquidityRequest) (model.AddLiquidityResult, error)
	RemoveLiquidity(ctx context.Context, req koala.RemoveLiquidityRequest) (model.RemoveLiquidityResult, error)
	OpenPosition(ctx context.Context, req koala.OpenPositionRequest) (model.OpenPositionResult, error)
	AddPositionLiquidity(ctx context.Context, req koala.PositionLiquidityRequest) (model.AddLiquidityResult, error)
	RemovePositionLiquidity(ctx context.Context, req koala.RemovePositionRequest) (model.RemoveLiquidityResult, error)
	ClosePosition(ctx context.Context, req koala.PositionRequest) (model.ClosePositionResult, error)
	CollectFees(ctx context.Context, req koala.PositionRequest) (model.CollectFeesResult, error)
	PositionInfo(ctx context.Context, req koala.PositionRef) (model.Position, error)
}

// Config holds the HTTP listener settings.
type Config struct {
	Listen         string
	RatePerMinute  int
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server serves the connector routes, health, and metrics.
type Server struct {
	cfg     Config
	svc     Orchestrator
	metrics *metrics.Metrics
	logger  *zap.Logger
	handler http.Handler
}

// NewServer builds the router. A nil logger or metrics is allowed.
func NewServer(cfg Config, svc Orchestrator, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("orchestrator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}

	s := &Server{cfg: cfg, svc: svc, metrics: m, logger: logger}
	s.handler = newCORSHandler(cfg.AllowedOrigins, s.routes())
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.logRequests)
	mux.Use(s.recoverPanics)
	if s.cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(s.cfg.RatePerMinute, time.Minute))
	}

	// Reads are bounded by RequestTimeout. Submissions run until their receipt arrives.
	read := mux.With(middleware.Timeout(s.cfg.RequestTimeout))

	read.Get("/healthz", s.health)
	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	mux.Route(BasePath, func(r chi.Router) {
		r.Route("/amm", func(r chi.Router) {
			read := r.With(middleware.Timeout(s.cfg.RequestTimeout))
			read.Get("/pool-info", s.poolInfo(model.PoolKindAMM))
			read.Get("/quote-swap", s.quoteSwap(model.PoolKindAMM))
			r.Post("/execute-swap", s.executeSwap(model.PoolKindAMM))
			read.Get("/quote-liquidity", s.quoteLiquidity)
			r.Post("/add-liquidity", s.addLiquidity)
			r.Post("/remove-liquidity", s.removeLiquidity)
		})
		r.Route("/clmm", func(r chi.Router) {
			read := r.With(middleware.Timeout(s.cfg.RequestTimeout))
			read.Get("/pool-info", s.poolInfo(model.PoolKindCLMM))
			read.Get("/quote-swap", s.quoteSwap(model.PoolKindCLMM))
			r.Post("/execute-swap", s.executeSwap(model.PoolKindCLMM))
			read.Get("/position-info", s.positionInfo)
			r.Post("/open-position", s.openPosition)
			r.Post("/add-liquidity", s.addPositionLiquidity)
			r.Post("/remove-liquidity", s.removePositionLiquidity)
			r.Post("/close-position", s.closePosition)
			r.Post("/collect-fees", s.collectFees)
		})
	})
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"networks": s.svc.Networks(),
	})
}

// Run listens until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
