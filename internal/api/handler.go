// Package api exposes the learning engine over HTTP/JSON.
package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-paths/internal/learning"
	"github.com/p-n-ai/pai-paths/internal/report"
)

// Handler serves the /v1 routes.
type Handler struct {
	engine *learning.Engine
	events http.Handler
}

// NewHandler creates a handler for engine. events, when non-nil, serves GET /v1/events.
func NewHandler(engine *learning.Engine, events http.Handler) *Handler {
	return &Handler{engine: engine, events: events}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/paths/from-goal", h.createPathFromGoal)
	mux.HandleFunc("POST /v1/paths/from-topic", h.createPathFromTopic)
	mux.HandleFunc("POST /v1/paths/import", h.importPath)
	mux.HandleFunc("GET /v1/paths", h.listPaths)
	mux.HandleFunc("GET /v1/paths/{pathID}", h.getPath)
	mux.HandleFunc("DELETE /v1/paths/{pathID}", h.deletePath)

	mux.HandleFunc("POST /v1/paths/{pathID}/users/{userID}/start", h.startPath)
	mux.HandleFunc("GET /v1/paths/{pathID}/users/{userID}/progress", h.getProgress)
	mux.HandleFunc("POST /v1/paths/{pathID}/users/{userID}/steps/{stepID}/complete", h.completeStep)
	mux.HandleFunc("GET /v1/paths/{pathID}/users/{userID}/next", h.nextSteps)
	mux.HandleFunc("GET /v1/paths/{pathID}/users/{userID}/recommendations", h.recommendations)

	mux.HandleFunc("GET /v1/users/{userID}/stats", h.userStats)
	mux.HandleFunc("GET /v1/users/{userID}/stats.xlsx", h.userStatsWorkbook)

	mux.HandleFunc("POST /v1/goals", h.createGoal)
	mux.HandleFunc("GET /v1/goals", h.listGoals)
	mux.HandleFunc("GET /v1/goals/{goalID}", h.getGoal)
	mux.HandleFunc("DELETE /v1/goals/{goalID}", h.deleteGoal)

	if h.events != nil {
		mux.Handle("GET /v1/events", h.events)
	}
}

type topicRequest struct {
	Topic       string                    `json:"topic"`
	Difficulty  learning.Tier             `json:"difficulty"`
	Preferences learning.TopicPreferences `json:"preferences"`
}

type completeRequest struct {
	TimeSpent int     `json:"time_spent"`
	Rating    *int    `json:"rating,omitempty"`
	Note      *string `json:"note,omitempty"`
}

func (h *Handler) createPathFromGoal(w http.ResponseWriter, r *http.Request) {
	var goal learning.LearningGoal
	if err := decodeJSON(w, r, &goal); err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.engine.CreatePathFromGoal(r.Context(), goal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, path)
}

func (h *Handler) createPathFromTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.engine.CreatePathFromTopic(r.Context(), req.Topic, req.Difficulty, req.Preferences)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, path)
}

func (h *Handler) importPath(w http.ResponseWriter, r *http.Request) {
	var path learning.LearningPath
	if err := decodeJSON(w, r, &path); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.engine.ImportPath(r.Context(), path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// listPaths returns the whole catalog, or search results when any query parameter is set.
func (h *Handler) listPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if len(q) == 0 {
		paths, err := h.engine.ListPaths(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"paths": paths, "count": len(paths)})
		return
	}

	filters, err := parseFilters(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := h.engine.SearchPaths(r.Context(), q.Get("q"), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (h *Handler) getPath(w http.ResponseWriter, r *http.Request) {
	path, err := h.engine.GetPath(r.Context(), r.PathValue("pathID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (h *Handler) deletePath(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeletePath(r.Context(), r.PathValue("pathID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startPath(w http.ResponseWriter, r *http.Request) {
	progress, err := h.engine.StartPath(r.Context(), r.PathValue("pathID"), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.engine.GetProgress(r.Context(), r.PathValue("pathID"), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) completeStep(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	progress, err := h.engine.CompleteStep(r.Context(), learning.CompleteStepRequest{
		PathID:    r.PathValue("pathID"),
		UserID:    r.PathValue("userID"),
		StepID:    r.PathValue("stepID"),
		TimeSpent: req.TimeSpent,
		Rating:    req.Rating,
		Note:      req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *Handler) nextSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := h.engine.GetNextSteps(r.Context(), r.PathValue("pathID"), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.GetRecommendations(r.Context(), r.PathValue("pathID"), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.GetUserStats(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) userStatsWorkbook(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	rep, err := report.Build(r.Context(), h.engine, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Render fully before writing headers so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := report.Write(&buf, rep); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-stats.xlsx"`, safeFilename(userID)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var goal learning.LearningGoal
	if err := decodeJSON(w, r, &goal); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.engine.CreateGoal(r.Context(), goal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.engine.ListGoals(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals, "count": len(goals)})
}

func (h *Handler) getGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.engine.GetGoal(r.Context(), r.PathValue("goalID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (h *Handler) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteGoal(r.Context(), r.PathValue("goalID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
