package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/petlibro-integration/internal/pkg/database"
	"github.com/anicoll/petlibro-integration/internal/pkg/model"
	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
	"github.com/anicoll/petlibro-integration/internal/pkg/schedule"
)

type deviceService interface {
	Snapshot() map[string]any
	Dispense(portions int) error
	OpenDoor() error
	CloseDoor() error
	ToggleDoor() error
	StartPump() error
	StopPump() error
	TogglePump() error
	ResetFilterLife() error
	Schedule() (petlibro.FeedingSchedule, error)
	PushSchedule(plans []petlibro.FeedingPlan) error
	FetchSchedule(ctx context.Context) error
}

// History is the stored-record surface the endpoints below read from.
// A nil History disables them.
type History interface {
	GetFeedings(ctx context.Context, serialNumber string, from, to time.Time) (database.FeedingEvents, error)
	GetProperties(ctx context.Context, identifier, slug string, from, to *time.Time) (database.Properties, error)
	GetLatestProperties(ctx context.Context) (database.Properties, error)
}

type server struct {
	device   deviceService
	info     model.Device
	history  History
	tzOffset func() int
	refresh  func()
	logger   *zap.Logger
}

// New builds the HTTP control surface for one device. history and
// refresh may be nil when no database or coordinator is wired.
func New(device deviceService, info model.Device, history History, tzOffset func() int, refresh func()) *server {
	if tzOffset == nil {
		tzOffset = petlibro.HostTimezoneOffset
	}
	return &server{
		device:   device,
		info:     info,
		history:  history,
		tzOffset: tzOffset,
		refresh:  refresh,
		logger:   zap.L(),
	}
}

func (s *server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)

	r.Get("/state", s.getState)
	r.Post("/feed", s.postFeed)
	r.Post("/door/{action}", s.postDoor)
	r.Post("/pump/{action}", s.postPump)
	r.Post("/filter/reset", s.postFilterReset)
	r.Get("/schedule", s.getSchedule)
	r.Put("/schedule", s.putSchedule)
	r.Get("/feedings", s.getFeedings)
	r.Get("/properties", s.getProperties)
	r.Get("/properties/{slug}", s.getPropertyHistory)

	return r
}

func (s *server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.device.Snapshot())
}

type feedRequest struct {
	Portions int `json:"portions"`
}

func (s *server) postFeed(w http.ResponseWriter, r *http.Request) {
	req, err := unmarshalPayload[feedRequest](r)
	if err != nil {
		handleError(w, err)
		return
	}
	if req.Portions < 1 {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("portions must be at least 1"))
		return
	}
	if err := s.device.Dispense(req.Portions); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) postDoor(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "open":
		err = s.device.OpenDoor()
	case "close":
		err = s.device.CloseDoor()
	case "toggle":
		err = s.device.ToggleDoor()
	default:
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("unknown door action: " + action))
		return
	}
	if err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) postPump(w http.ResponseWriter, r *http.Request) {
	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		err = s.device.StartPump()
	case "stop":
		err = s.device.StopPump()
	case "toggle":
		err = s.device.TogglePump()
	default:
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("unknown pump action: " + action))
		return
	}
	if err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) postFilterReset(w http.ResponseWriter, r *http.Request) {
	if err := s.device.ResetFilterLife(); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) getSchedule(w http.ResponseWriter, r *http.Request) {
	sched, err := s.device.Schedule()
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule.LocalView(sched.Plans, s.tzOffset()))
}

// putSchedule replaces the feeding schedule with the desired local
// entries. When the desired schedule already matches what the device
// holds, nothing is pushed.
func (s *server) putSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := unmarshalPayload[[]schedule.Entry](r)
	if err != nil {
		handleError(w, err)
		return
	}

	current, err := s.device.Schedule()
	if err != nil {
		handleError(w, err)
		return
	}

	plans, changed := schedule.Plan(*entries, current.Plans, s.tzOffset())
	if !changed {
		s.logger.Debug("schedule unchanged, skipping push")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("unchanged"))
		return
	}

	if err := s.device.PushSchedule(plans); err != nil {
		handleError(w, err)
		return
	}
	if s.refresh != nil {
		s.refresh()
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("success"))
}

func (s *server) getFeedings(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("feeding history not enabled"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -2)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handleError(w, err)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handleError(w, err)
			return
		}
		to = t
	}

	events, err := s.history.GetFeedings(r.Context(), s.info.SerialNumber, from, to)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// getProperties returns the last stored value of every sensor.
func (s *server) getProperties(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("history not enabled"))
		return
	}

	props, err := s.history.GetLatestProperties(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusView(props))
}

func (s *server) getPropertyHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("history not enabled"))
		return
	}

	var from, to *time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handleError(w, err)
			return
		}
		from = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handleError(w, err)
			return
		}
		to = &t
	}

	props, err := s.history.GetProperties(r.Context(), s.info.Identifier(), chi.URLParam(r, "slug"), from, to)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// statusView flattens stored properties into the sensor summary shape.
func statusView(props database.Properties) []model.DeviceStatus {
	return lo.Map(props, func(p database.Property, _ int) model.DeviceStatus {
		st := model.DeviceStatus{
			Name:  strings.ReplaceAll(p.Slug, "_", " "),
			Slug:  p.Slug,
			Value: p.Value,
		}
		if p.Unit != nil {
			st.Unit = *p.Unit
		}
		return st
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, petlibro.ErrUnsupported):
		status = http.StatusBadRequest
	case errors.Is(err, petlibro.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, schedule.ErrPlanNotFound):
		status = http.StatusNotFound
	}
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func unmarshalPayload[T any](r *http.Request) (*T, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
