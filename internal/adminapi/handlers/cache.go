package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hydraresolve/hydraresolve/internal/adminapi/models"
)

const defaultEntryLimit = 100

func entryLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultEntryLimit
}

// AnswerCache godoc
// @Summary Answer cache introspection
// @Description Returns positive-answer cache occupancy and a bounded sample of entries.
// @Tags cache
// @Produce json
// @Param limit query int false "max entries to return (default 100)"
// @Success 200 {object} models.CacheResponse
// @Security ApiKeyAuth
// @Router /cache/answer [get]
func (h *Handler) AnswerCache(c *gin.Context) {
	h.mu.RLock()
	statsFn, listFn := h.answerCacheStats, h.answerCacheList
	h.mu.RUnlock()

	c.JSON(http.StatusOK, buildCacheResponse(statsFn, listFn, entryLimit(c)))
}

// NegativeCache godoc
// @Summary Negative cache introspection
// @Description Returns NXDOMAIN/NODATA cache occupancy and a bounded sample of entries.
// @Tags cache
// @Produce json
// @Param limit query int false "max entries to return (default 100)"
// @Success 200 {object} models.CacheResponse
// @Security ApiKeyAuth
// @Router /cache/negative [get]
func (h *Handler) NegativeCache(c *gin.Context) {
	h.mu.RLock()
	statsFn, listFn := h.negativeCacheStats, h.negativeCacheList
	h.mu.RUnlock()

	c.JSON(http.StatusOK, buildCacheResponse(statsFn, listFn, entryLimit(c)))
}

func buildCacheResponse(statsFn CacheStatsFunc, listFn CacheEntriesFunc, limit int) models.CacheResponse {
	resp := models.CacheResponse{Entries: []models.CacheEntrySummary{}}
	if statsFn != nil {
		s := statsFn()
		resp.Stats = models.CacheStatsResponse{
			Entries:     s.Entries,
			WeightBytes: s.WeightBytes,
			Hits:        s.Hits,
			Misses:      s.Misses,
			NearExpiry:  s.NearExpiry,
			StaleServed: s.StaleServed,
		}
	}
	if listFn != nil {
		for _, e := range listFn(limit) {
			resp.Entries = append(resp.Entries, models.CacheEntrySummary{
				Key:       e.Key,
				Type:      e.Type,
				ExpiresAt: e.ExpiresAt,
			})
		}
	}
	return resp
}

// Delegations godoc
// @Summary Delegation cache introspection
// @Description Returns cached NS delegation points learned by the iterative resolver.
// @Tags cache
// @Produce json
// @Param limit query int false "max entries to return (default 100)"
// @Success 200 {object} models.DelegationsResponse
// @Security ApiKeyAuth
// @Router /delegations [get]
func (h *Handler) Delegations(c *gin.Context) {
	h.mu.RLock()
	listFn := h.delegationsList
	h.mu.RUnlock()

	resp := models.DelegationsResponse{Entries: []models.DelegationSummary{}}
	if listFn != nil {
		entries := listFn(entryLimit(c))
		resp.Stats.Entries = len(entries)
		for _, e := range entries {
			resp.Entries = append(resp.Entries, models.DelegationSummary{
				Zone:      e.Zone,
				NS:        e.NS,
				GlueNames: e.GlueNames,
				ExpiresAt: e.ExpiresAt,
			})
		}
	}
	c.JSON(http.StatusOK, resp)
}
