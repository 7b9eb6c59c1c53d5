package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pilotgb/control-tower/internal/overview"
)

type OverviewHandler struct {
	source overview.Source
	logger *slog.Logger
}

func NewOverviewHandler(src overview.Source, logger *slog.Logger) *OverviewHandler {
	return &OverviewHandler{source: src, logger: logger}
}

// Get handles GET /api/v1/metrics/overview. The overview is computed from the
// store on every request so it reflects writes made a moment ago.
func (h *OverviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := overview.Load(r.Context(), h.source, time.Now().UTC())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": o})
}
