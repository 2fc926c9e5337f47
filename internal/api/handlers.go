package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tahcohcat/ascended-progress/internal/auth"
	"github.com/tahcohcat/ascended-progress/internal/logger"
	"github.com/tahcohcat/ascended-progress/internal/models"
	"github.com/tahcohcat/ascended-progress/internal/progress"
	"github.com/tahcohcat/ascended-progress/internal/services"
)

// maxBodyBytes bounds request bodies; a full five-room sync is far smaller.
const maxBodyBytes = 1 << 20

type Handler struct {
	progress     *services.ProgressService
	achievements *services.AchievementService
	log          *logger.Log
}

func NewHandler(progressService *services.ProgressService, achievementService *services.AchievementService) *Handler {
	return &Handler{
		progress:     progressService,
		achievements: achievementService,
		log:          logger.New().With("service", "api"),
	}
}

// RegisterRoutes mounts the progress API on r. r is expected to sit behind
// the session middleware.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/sync", h.SyncProgress).Methods("POST")
	r.HandleFunc("/progress/{room:[0-9]+}", h.GetRoomProgress).Methods("GET")
	r.HandleFunc("/progress/{room:[0-9]+}/events", h.RecordEvent).Methods("POST")
	r.HandleFunc("/achievements", h.GetAchievements).Methods("GET")
	r.HandleFunc("/achievements/evaluate", h.EvaluateAchievements).Methods("POST")
	r.HandleFunc("/badges", h.ListBadges).Methods("GET")
	r.HandleFunc("/activities", h.GetActivities).Methods("GET")
}

type syncRequest struct {
	LocalProgress map[int]models.RoomProgress `json:"local_progress"`
}

// POST /api/v1/progress/sync - Reconcile local progress with the server
func (h *Handler) SyncProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	var req syncRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, models.InvalidInput("body", "%v", err))
		return
	}

	result, err := h.progress.SyncProgress(r.Context(), userID, req.LocalProgress)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if n := len(result.FailedRooms); n > 0 && n == len(req.LocalProgress) {
		// nothing the client sent was stored
		h.writeError(w, result.Err())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/v1/progress/{room}/events - Apply one gameplay event
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	room, err := roomParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var e progress.Event
	if err := decode(w, r, &e); err != nil {
		h.writeError(w, models.InvalidInput("body", "%v", err))
		return
	}

	data, err := h.progress.RecordEvent(r.Context(), userID, room, e)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"room_number": room,
		"room_data":   data,
	})
}

// GET /api/v1/progress - All rooms plus the account summary
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	rooms, summary, err := h.progress.GetProgress(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rooms == nil {
		rooms = []models.RoomProgress{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":   rooms,
		"summary": summary,
	})
}

// GET /api/v1/progress/{room}
func (h *Handler) GetRoomProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	room, err := roomParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.progress.GetRoomProgress(r.Context(), userID, room)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /api/v1/achievements/evaluate - Award newly earned badges
func (h *Handler) EvaluateAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	awarded, err := h.achievements.EvaluateAchievements(r.Context(), userID)
	var awardErr *services.AwardError
	if err != nil && !errors.As(err, &awardErr) {
		h.writeError(w, err)
		return
	}
	if awarded == nil {
		awarded = []models.AchievementRecord{}
	}

	resp := map[string]interface{}{"new_achievements": awarded}
	if awardErr != nil {
		failed := make([]string, len(awardErr.Failures))
		for i, f := range awardErr.Failures {
			failed[i] = f.BadgeID
		}
		resp["failed_badges"] = failed
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/achievements - Earned achievements
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	records, err := h.achievements.GetUserAchievements(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if records == nil {
		records = []models.AchievementRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": records})
}

// GET /api/v1/badges - Badge catalog
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.achievements.ListBadges(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": badges})
}

// GET /api/v1/activities?limit=n - Recent activity feed
func (h *Handler) GetActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			h.writeError(w, models.InvalidInput("limit", "must be within 1..100"))
			return
		}
		limit = n
	}
	activities, err := h.achievements.GetRecentActivities(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if activities == nil {
		activities = []models.GameActivity{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"activities": activities})
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (int, bool) {
	id := auth.UserID(r.Context())
	if id == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return 0, false
	}
	return id, true
}

func roomParam(r *http.Request) (int, error) {
	room, err := strconv.Atoi(mux.Vars(r)["room"])
	if err != nil || !models.ValidRoom(room) {
		return 0, models.InvalidInput("room_number", "must be within 1..%d", models.NumRooms)
	}
	return room, nil
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflictingWriteLost):
		return http.StatusConflict
	case errors.Is(err, models.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed", "status", status)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
