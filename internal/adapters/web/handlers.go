package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"candleCache/internal/app"
	"candleCache/internal/domain"
	"candleCache/internal/localstore"
	"candleCache/internal/ports"
)

// Window applied around a single trade timestamp when the caller passes
// "date" instead of an explicit range: two hours of context before the
// trade, four after.
const (
	dateWindowBefore = 2 * time.Hour
	dateWindowAfter  = 4 * time.Hour
)

type candleHandler struct {
	service *app.CandleService
	local   *localstore.Store
	logger  ports.Logger
}

func newCandleHandler(service *app.CandleService, local *localstore.Store, logger ports.Logger) *candleHandler {
	return &candleHandler{service: service, local: local, logger: logger}
}

// parseTimeParam accepts RFC3339 timestamps or plain Unix seconds.
func parseTimeParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

// GetCandles serves GET /api/v1/candles.
//
// Query parameters: instrument (required), either date (single-trade
// window) or from/to (explicit range), timeframe (default m1).
// Responds 400 on missing or unparseable input, 200 with [] when no data
// exists for the range, 500 with {error, details} on unexpected failure.
func (h *candleHandler) GetCandles(c *gin.Context) {
	instrument := c.Query("instrument")
	if instrument == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instrument is required"})
		return
	}
	timeframe := domain.Timeframe(c.DefaultQuery("timeframe", string(domain.TimeframeM1)))

	var from, to time.Time
	if dateStr := c.Query("date"); dateStr != "" {
		date, err := parseTimeParam(dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
			return
		}
		from = date.Add(-dateWindowBefore)
		to = date.Add(dateWindowAfter)
	} else {
		fromStr, toStr := c.Query("from"), c.Query("to")
		if fromStr == "" || toStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date or from/to is required"})
			return
		}
		var err error
		if from, err = parseTimeParam(fromStr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		if to, err = parseTimeParam(toStr); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}

	candles, err := h.service.GetCandles(c.Request.Context(), instrument, timeframe, from, to)
	if err != nil {
		h.logger.Error(c.Request.Context(), err, "Candle resolution failed", map[string]interface{}{"instrument": instrument})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load candles", "details": err.Error()})
		return
	}
	if candles == nil {
		candles = []domain.Candle{}
	}
	c.JSON(http.StatusOK, candles)
}

// CacheInfo serves GET /api/v1/cache/info: a diagnostic summary of every
// local-store entry.
func (h *candleHandler) CacheInfo(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "local store not configured"})
		return
	}
	infos := h.local.Info(c.Request.Context())
	if infos == nil {
		infos = []domain.CacheInfo{}
	}
	c.JSON(http.StatusOK, infos)
}

// CacheSize serves GET /api/v1/cache/size.
func (h *candleHandler) CacheSize(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "local store not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bytes": h.local.SizeEstimate(c.Request.Context())})
}

// CacheClear serves DELETE /api/v1/cache. Manual reset only.
func (h *candleHandler) CacheClear(c *gin.Context) {
	if h.local == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "local store not configured"})
		return
	}
	if err := h.local.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
