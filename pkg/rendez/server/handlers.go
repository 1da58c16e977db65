package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yago-123/meet-punch/pkg/rendez/store"
	"github.com/yago-123/meet-punch/pkg/rendez/types"
)

type Handler struct {
	pool store.Pool
}

func NewHandler(p store.Pool) *Handler {
	return &Handler{pool: p}
}

// HealthHandler godoc
// @Summary      Liveness probe
// @Tags         status
// @Produce      plain
// @Success      200  {string}  string "ok"
// @Router       /health [get]
func (h *Handler) HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// PoolHandler godoc
// @Summary      Waiting pool
// @Description  Lists the endpoints registered and still waiting for a partner, in arrival order
// @Tags         status
// @Produce      json
// @Success      200 {object} types.PoolResponse
// @Router       /pool [get]
func (h *Handler) PoolHandler(c *gin.Context) {
	waiting := h.pool.Waiting()

	resp := types.PoolResponse{
		Size:    len(waiting),
		Waiting: make([]string, len(waiting)),
	}
	for i, ep := range waiting {
		resp.Waiting[i] = ep.String()
	}

	c.JSON(http.StatusOK, resp)
}
