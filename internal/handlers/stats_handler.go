package handlers

import (
	"net/http"

	"github.com/Dias221467/FoodRescue/internal/services"
)

type StatsHandler struct {
	Service *services.StatsService
}

func NewStatsHandler(service *services.StatsService) *StatsHandler {
	return &StatsHandler{Service: service}
}

// GET /api/stats
func (h *StatsHandler) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Compute(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
