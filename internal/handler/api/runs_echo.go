package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	svccache "AnchorPull/internal/service/cache"
	"AnchorPull/internal/service/ratelimit"
	"AnchorPull/internal/usecase"
	pkgcache "AnchorPull/pkg/cache"
	xhttp "AnchorPull/pkg/http"
	xlogger "AnchorPull/pkg/logger"
	"AnchorPull/pkg/util"

	"github.com/labstack/echo/v4"
)

const (
	signalsCacheTTL = 15 * time.Second
	runLockKey      = "run:lock"
	runLockTTL      = 10 * time.Minute
)

// RunsEchoHandler exposes run triggering and signal queries over Echo.
// Evaluation runs are serialized: one at a time, rate limited.
type RunsEchoHandler struct {
	logger   *xlogger.Logger
	daily    *usecase.DailyRun
	backfill *usecase.Backfill
	signals  domrepo.SignalStore
	state    domrepo.StateStore
	zones    domrepo.ZoneHistory
	locks    pkgcache.Service
	cache    *svccache.TTLCache
	limiter  *ratelimit.Limiter

	mu      sync.Mutex
	running bool
	last    *models.RunSummary
}

func NewRunsEchoHandler(
	logger *xlogger.Logger,
	daily *usecase.DailyRun,
	backfill *usecase.Backfill,
	signals domrepo.SignalStore,
	state domrepo.StateStore,
	zones domrepo.ZoneHistory,
	locks pkgcache.Service,
) *RunsEchoHandler {
	return &RunsEchoHandler{
		logger:   logger,
		daily:    daily,
		backfill: backfill,
		signals:  signals,
		state:    state,
		zones:    zones,
		locks:    locks,
		cache:    svccache.NewTTLCache(),
		limiter:  ratelimit.New(),
	}
}

func (h *RunsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.POST("/runs", h.TriggerRun)
	g.POST("/backfill", h.TriggerBackfill)
	g.GET("/runs/latest", h.LatestRun)
	g.GET("/signals", h.Signals)
	g.GET("/zone", h.Zone)
}

func (h *RunsEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *RunsEchoHandler) TriggerRun(c echo.Context) error {
	req := &models.TriggerRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.limiter.Allow("runs", 2, 1.0/30) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "run already requested recently")
	}

	asOf := util.ParseDateDefault(req.Date, util.LatestTradingDay(time.Now().UTC()))
	if !h.tryAcquire(c.Request().Context()) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a run is already in progress"))
	}
	defer h.release(c.Request().Context())

	summary, err := h.daily.Run(c.Request().Context(), asOf)
	h.remember(summary)
	if err != nil {
		h.logger.Error("run failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusBadGateway, summary)
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *RunsEchoHandler) TriggerBackfill(c echo.Context) error {
	req := &models.BackfillRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.limiter.Allow("backfill", 1, 1.0/300) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "backfill already requested recently")
	}

	from, err := util.ParseDate(req.From)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if !h.tryAcquire(c.Request().Context()) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("a run is already in progress"))
	}
	defer h.release(c.Request().Context())

	summary, err := h.backfill.Run(c.Request().Context(), from)
	h.remember(summary)
	if err != nil {
		h.logger.Error("backfill failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusBadGateway, summary)
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *RunsEchoHandler) LatestRun(c echo.Context) error {
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last == nil {
		return xhttp.NotFoundResponse(c, "no run recorded yet")
	}
	return xhttp.SuccessResponse(c, last)
}

func (h *RunsEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date := util.ParseDateDefault(req.Date, util.LatestTradingDay(time.Now().UTC()))

	key := "signals:" + util.FormatDate(date) + ":" + strconv.Itoa(req.Limit)
	if v, ok := h.cache.Get(key); ok {
		if rows, ok2 := v.([]models.Signal); ok2 {
			return xhttp.SuccessResponse(c, rows)
		}
	}

	rows, err := h.signals.Latest(c.Request().Context(), date, req.Limit)
	if err != nil {
		h.logger.Error("signals query failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	h.cache.Set(key, rows, signalsCacheTTL)
	return xhttp.SuccessResponse(c, rows)
}

func (h *RunsEchoHandler) Zone(c echo.Context) error {
	req := &models.ZoneRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.Date != "" {
		date, err := util.ParseDate(req.Date)
		if err != nil {
			return xhttp.BadRequestResponse(c, err.Error())
		}
		zone, err := h.zones.ZoneFor(c.Request().Context(), date)
		if err != nil {
			h.logger.Error("zone query failed", xlogger.Error(err))
			return xhttp.InternalServerErrorResponse(c)
		}
		return xhttp.SuccessResponse(c, map[string]string{"date": req.Date, "zone": string(zone)})
	}

	zone, _, err := h.state.LoadZone(c.Request().Context())
	if err != nil {
		h.logger.Error("zone state failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, map[string]string{"zone": string(zone)})
}

// tryAcquire serializes runs across processes: the Redis lock guards other
// instances, the local flag guards this one. The lock TTL bounds how long a
// crashed holder can block everyone else.
func (h *RunsEchoHandler) tryAcquire(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return false
	}
	if h.locks != nil {
		ok, err := h.locks.TryLock(ctx, runLockKey, runLockTTL)
		if err != nil {
			h.logger.Warn("run lock unavailable, proceeding locally", xlogger.Error(err))
		} else if !ok {
			return false
		}
	}
	h.running = true
	return true
}

func (h *RunsEchoHandler) release(ctx context.Context) {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	if h.locks != nil {
		if err := h.locks.Unlock(ctx, runLockKey); err != nil {
			h.logger.Warn("run lock release failed", xlogger.Error(err))
		}
	}
}

func (h *RunsEchoHandler) remember(s models.RunSummary) {
	h.mu.Lock()
	h.last = &s
	h.mu.Unlock()
}
