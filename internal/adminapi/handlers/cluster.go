package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hydraresolve/hydraresolve/internal/adminapi/models"
)

// ClusterStatus godoc
// @Summary Cluster sync status
// @Description Returns this node's cluster role and, for secondary nodes, the last root-hints/blocklist sync outcome.
// @Tags cluster
// @Produce json
// @Success 200 {object} models.ClusterStatusResponse
// @Security ApiKeyAuth
// @Router /cluster/status [get]
func (h *Handler) ClusterStatus(c *gin.Context) {
	h.mu.RLock()
	fn := h.clusterStatus
	h.mu.RUnlock()

	if fn == nil {
		c.JSON(http.StatusOK, models.ClusterStatusResponse{Mode: "standalone", NodeID: h.nodeID})
		return
	}

	status := fn()
	c.JSON(http.StatusOK, models.ClusterStatusResponse{
		Mode:            string(status.Mode),
		NodeID:          status.NodeID,
		PrimaryURL:      status.PrimaryURL,
		LastSyncTime:    status.LastSyncTime,
		LastSyncVersion: status.LastSyncVersion,
		LastSyncError:   status.LastSyncError,
		NextSyncTime:    status.NextSyncTime,
		SyncCount:       status.SyncCount,
		ErrorCount:      status.ErrorCount,
		DataVersion:     status.DataVersion,
	})
}

// ClusterExport godoc
// @Summary Export root-hints/blocklist data for cluster sync
// @Description Returns this node's current root hints and blocklist domains for a secondary node to import. Requires the configured cluster shared secret via X-Cluster-Secret, enforced one level up by middleware.RequireClusterSecret wiring in routes.go.
// @Tags cluster
// @Produce json
// @Success 200 {object} cluster.ExportData
// @Failure 401 {object} models.ErrorResponse
// @Router /cluster/export [get]
func (h *Handler) ClusterExport(c *gin.Context) {
	h.mu.RLock()
	fn := h.clusterExport
	h.mu.RUnlock()

	if fn == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "cluster export not available"})
		return
	}

	data, err := fn()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, data)
}
