package consumers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

// Reader exposes stored consumer records.
type Reader interface {
	Get(ctx context.Context, name string) (model.ConsumerRecord, error)
	List(ctx context.Context) ([]model.ConsumerRecord, error)
}

// ScheduleReader exposes the remaining slots of a consumer.
type ScheduleReader interface {
	Schedules(ctx context.Context, consumer string) ([]model.ScheduleSlot, error)
}

// Updater changes a stored record under the consumer's lock.
type Updater interface {
	Update(ctx context.Context, name string, fn func(*model.ConsumerRecord) error) (model.ConsumerRecord, error)
}

// View is the JSON projection of a consumer.
type View struct {
	model.ConsumerRecord
	State    string              `json:"state"`
	NextSlot *model.ScheduleSlot `json:"next_slot,omitempty"`
}

type toggle struct {
	Enabled *bool `json:"enabled"`
}

// Handler serves the consumer API.
type Handler struct {
	records   Reader
	schedules ScheduleReader
	updater   Updater
	token     string
	logger    logger.Logger
}

// NewRouter returns the API router. Requests must include an Authorization
// header with "Bearer <token>" when token is non-empty; /health is always open.
func NewRouter(records Reader, schedules ScheduleReader, updater Updater, token string, log logger.Logger) *mux.Router {
	h := &Handler{records: records, schedules: schedules, updater: updater, token: token, logger: log}
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/consumers").Subrouter()
	api.Use(h.authenticate)
	api.HandleFunc("", h.list).Methods(http.MethodGet)
	api.HandleFunc("/{name}", h.get).Methods(http.MethodGet)
	api.HandleFunc("/{name}/schedules", h.listSchedules).Methods(http.MethodGet)
	api.HandleFunc("/{name}/scheduling", h.setFlag(func(r *model.ConsumerRecord, on bool) { r.SchedulingEnabled = on })).Methods(http.MethodPut)
	api.HandleFunc("/{name}/enabled", h.setFlag(func(r *model.ConsumerRecord, on bool) { r.Enabled = on })).Methods(http.MethodPut)
	return r
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && !validBearer(r.Header.Get("Authorization"), h.token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validBearer(header, token string) bool {
	return subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+token)) == 1
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	recs, err := h.records.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		v, err := h.view(r.Context(), rec)
		if err != nil {
			h.fail(w, err)
			return
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.fail(w, err)
		return
	}
	v, err := h.view(r.Context(), rec)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, err := h.records.Get(r.Context(), name); err != nil {
		h.fail(w, err)
		return
	}
	slots, err := h.schedules.Schedules(r.Context(), name)
	if err != nil {
		h.fail(w, err)
		return
	}
	if slots == nil {
		slots = []model.ScheduleSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) setFlag(apply func(*model.ConsumerRecord, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body toggle
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
			http.Error(w, `body must be {"enabled": true|false}`, http.StatusBadRequest)
			return
		}
		name := mux.Vars(r)["name"]
		rec, err := h.updater.Update(r.Context(), name, func(rec *model.ConsumerRecord) error {
			apply(rec, *body.Enabled)
			return nil
		})
		if err != nil {
			h.fail(w, err)
			return
		}
		h.logger.Infof("consumer %s: %s set to %t", name, r.URL.Path, *body.Enabled)
		v, err := h.view(r.Context(), rec)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) view(ctx context.Context, rec model.ConsumerRecord) (View, error) {
	v := View{ConsumerRecord: rec, State: rec.State().String()}
	slots, err := h.schedules.Schedules(ctx, rec.Name)
	if err != nil {
		return View{}, err
	}
	if len(slots) > 0 {
		next := slots[0]
		v.NextSlot = &next
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrConsumerNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.logger.Errorf("api: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
