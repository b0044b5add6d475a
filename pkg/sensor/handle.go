package sensor

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shambasecure/shamba-auth/pkg/client"
)

type LatestResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    LatestReading `json:"data"`
}

type HistoryData struct {
	Range    string    `json:"range"`
	Interval string    `json:"interval"`
	Readings []Reading `json:"readings"`
}

type HistoryResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    HistoryData `json:"data"`
}

type StatsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    Stats  `json:"data"`
}

// Handle serves the /api/sensors route group. All routes require a session.
type Handle struct {
	generator *Generator
}

func NewHandle(generator *Generator) *Handle {
	return &Handle{generator: generator}
}

func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(client.RequireAuth)
	r.Get("/latest", h.Latest)
	r.Get("/history", h.History)
	r.Get("/stats", h.Stats)
	return r
}

// Latest handles GET /latest
func (h *Handle) Latest(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, LatestResponse{
		Success: true,
		Message: "Latest sensor readings retrieved successfully",
		Data:    h.generator.Latest(),
	})
}

// History handles GET /history?range=24h&interval=1h
func (h *Handle) History(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("range")
	if timeRange == "" {
		timeRange = "24h"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1h"
	}

	readings := h.generator.History(ParseRange(timeRange), ParseInterval(interval))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, HistoryResponse{
		Success: true,
		Message: "Historical data retrieved successfully",
		Data: HistoryData{
			Range:    timeRange,
			Interval: interval,
			Readings: readings,
		},
	})
}

// Stats handles GET /stats
func (h *Handle) Stats(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, StatsResponse{
		Success: true,
		Message: "Statistics retrieved successfully",
		Data:    h.generator.DayStats(),
	})
}
