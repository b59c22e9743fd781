// Package api exposes the booking core over HTTP. Client endpoints
// cover slot discovery and the hold/confirm flow; admin endpoints cover
// the appointment overview, cancellation and the xlsx export.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"prohair/internal/availability"
	"prohair/internal/booking"
	"prohair/internal/models"
	"prohair/internal/report"
	"prohair/internal/timezone"
)

// startLayout is the wall-clock format clients send for hold starts.
const startLayout = "2006-01-02T15:04"

// SettingsSource yields the business settings, used to resolve the
// report timezone.
type SettingsSource interface {
	Settings(ctx context.Context) (*models.BusinessSettings, error)
}

// Server holds the HTTP handlers.
type Server struct {
	bookings *booking.Service
	engine   *availability.Engine
	settings SettingsSource
	logger   *zerolog.Logger
}

// New creates the API server.
func New(bookings *booking.Service, engine *availability.Engine, settings SettingsSource, logger *zerolog.Logger) *Server {
	return &Server{
		bookings: bookings,
		engine:   engine,
		settings: settings,
		logger:   logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/slots", s.handleSlots)
	mux.HandleFunc("POST /api/holds", s.handleCreateHold)
	mux.HandleFunc("POST /api/holds/confirm", s.handleConfirm)
	mux.HandleFunc("DELETE /api/holds/{token}", s.handleRelease)
	mux.HandleFunc("GET /api/admin/appointments", s.handleListAppointments)
	mux.HandleFunc("GET /api/admin/appointments/export", s.handleExport)
	mux.HandleFunc("POST /api/admin/appointments/cancel", s.handleCancel)
	return mux
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stylistID, _ := strconv.ParseInt(q.Get("stylist_id"), 10, 64)
	serviceID, _ := strconv.ParseInt(q.Get("service_id"), 10, 64)
	date := q.Get("date")

	slots, err := s.engine.ComputeSlots(r.Context(), date, stylistID, serviceID, q.Get("tz"))
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("compute slots failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": date, "slots": out})
}

type holdRequest struct {
	StylistID int64  `json:"stylistId"`
	ServiceID int64  `json:"serviceId"`
	Start     string `json:"start"`
	TZ        string `json:"tz"`
}

func (s *Server) handleCreateHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	start, err := time.Parse(startLayout, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start, expected "+startLayout)
		return
	}

	appt, err := s.bookings.CreateHold(r.Context(), booking.HoldRequest{
		StylistID:  req.StylistID,
		ServiceID:  req.ServiceID,
		StartLocal: start,
		TZ:         req.TZ,
	})
	switch {
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot already taken")
		return
	case errors.Is(err, booking.ErrNotBookable), errors.Is(err, booking.ErrUnknownService):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("create hold failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"holdToken":     appt.HoldToken,
		"holdExpiryUtc": appt.HoldUntilUTC.Format(time.RFC3339),
		"startUtc":      appt.StartUTC.Format(time.RFC3339),
		"endUtc":        appt.EndUTC.Format(time.RFC3339),
	})
}

type confirmRequest struct {
	HoldToken string `json:"holdToken"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	appt, err := s.bookings.Confirm(r.Context(), req.HoldToken, req.Name, req.Email, req.Phone)
	switch {
	case errors.Is(err, booking.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, "hold not found")
		return
	case errors.Is(err, booking.ErrHoldExpired):
		writeError(w, http.StatusGone, "hold has expired")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("confirm failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appointmentId": appt.ID,
		"status":        appt.Status,
		"startUtc":      appt.StartUTC.Format(time.RFC3339),
		"endUtc":        appt.EndUTC.Format(time.RFC3339),
	})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	released, err := s.bookings.ReleaseHold(r.Context(), r.PathValue("token"))
	if err != nil {
		s.logger.Error().Err(err).Msg("release failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"released": released})
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	includeCancelled := r.URL.Query().Get("include_cancelled") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	summaries, err := s.bookings.ListRecent(r.Context(), includeCancelled, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list appointments failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if summaries == nil {
		summaries = []models.AppointmentSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tz := timezone.DefaultTimezone
	if settings, err := s.settings.Settings(r.Context()); err == nil {
		tz = settings.TimeZone
	}
	includeCancelled := r.URL.Query().Get("include_cancelled") == "true"

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(time.Now(), tz)+`"`)
	if err := report.AppointmentsXLSX(r.Context(), s.bookings, tz, includeCancelled, w); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

type cancelRequest struct {
	IDs  []int64 `json:"ids"`
	Hard bool    `json:"hard"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	n, err := s.bookings.CancelMany(r.Context(), req.IDs, req.Hard)
	if err != nil {
		s.logger.Error().Err(err).Msg("cancel failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cancelled": n})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
