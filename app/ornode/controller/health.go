package controller

import (
	"net/http"

	"github.com/fractalrespect/orecx/pkg/rpc"
)

// HandleHealth reports ok unless an enabled Redis is unreachable. Redis
// only carries live events, so its failure degrades the node instead of
// failing it.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := rpc.HealthResponse{Status: "ok"}
	if c.App.RedisClient != nil {
		resp.Redis = "ok"
		if err := c.App.RedisClient.Health(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Redis = "unreachable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
