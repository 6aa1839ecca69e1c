package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"whatif-novel-api/internal/core"
	"whatif-novel-api/internal/store"
)

type APIHandler struct {
	storyService *core.StoryService
}

func NewAPIHandler(ss *core.StoryService) *APIHandler {
	return &APIHandler{storyService: ss}
}

// storyResponse is the full Story projection, including the derived rating
// aggregates and the share URL once a token exists.
type storyResponse struct {
	ID            int64     `json:"id"`
	Universe      string    `json:"universe"`
	WhatIf        string    `json:"what_if"`
	Story         string    `json:"story"`
	WordCount     int       `json:"word_count"`
	Rating        int       `json:"rating"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
	CreatedAt     time.Time `json:"created_at"`
	ShareURL      string    `json:"share_url,omitempty"`
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "What If Novel AI API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"universes": "/universes",
			"generate":  "/story/generate",
			"history":   "/story/history",
			"trending":  "/story/trending",
		},
	})
}

func (h *APIHandler) ListUniversesHandler(w http.ResponseWriter, r *http.Request) {
	names := core.UniverseNames()
	writeJSON(w, http.StatusOK, map[string]any{
		"universes": names,
		"count":     len(names),
	})
}

type GenerateStoryRequest struct {
	Universe     string `json:"universe"`
	WhatIf       string `json:"what_if"`
	Length       string `json:"length"`
	SystemPrompt string `json:"system_prompt,omitempty"` // Custom-universe path only
}

func (h *APIHandler) GenerateStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Universe == "" || req.WhatIf == "" {
		http.Error(w, "Universe and what_if are required", http.StatusBadRequest)
		return
	}

	story, err := h.storyService.GenerateStory(r.Context(), req.Universe, req.WhatIf, req.Length)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedUniverse) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Error generating story for universe %q: %v", req.Universe, err)
		http.Error(w, "Story generation failed", http.StatusInternalServerError)
		return
	}

	h.writeStory(w, http.StatusOK, story)
}

func (h *APIHandler) GenerateCustomStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Universe == "" || req.WhatIf == "" {
		http.Error(w, "Universe and what_if are required", http.StatusBadRequest)
		return
	}

	story, err := h.storyService.GenerateCustomStory(r.Context(), req.Universe, req.SystemPrompt, req.WhatIf, req.Length)
	if err != nil {
		log.Printf("Error generating custom story for universe %q: %v", req.Universe, err)
		http.Error(w, "Story generation failed", http.StatusInternalServerError)
		return
	}

	h.writeStory(w, http.StatusOK, story)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	stories, err := h.storyService.RecentStories(limit)
	if err != nil {
		log.Printf("Error listing story history: %v", err)
		http.Error(w, "Failed to list stories", http.StatusInternalServerError)
		return
	}
	if stories == nil {
		stories = []store.StorySummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(stories),
		"stories": stories,
	})
}

func (h *APIHandler) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	stories, err := h.storyService.TrendingStories(10)
	if err != nil {
		log.Printf("Error listing trending stories: %v", err)
		http.Error(w, "Failed to list stories", http.StatusInternalServerError)
		return
	}
	if stories == nil {
		stories = []store.StorySummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"stories": stories})
}

func (h *APIHandler) GetStoryHandler(w http.ResponseWriter, r *http.Request) {
	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid story ID", http.StatusBadRequest)
		return
	}

	story, err := h.storyService.GetStory(storyID)
	if err != nil {
		log.Printf("Error getting story %d: %v", storyID, err)
		http.Error(w, "Failed to get story", http.StatusInternalServerError)
		return
	}
	if story == nil {
		http.Error(w, "Story not found", http.StatusNotFound)
		return
	}

	h.writeStory(w, http.StatusOK, story)
}

type RateStoryRequest struct {
	Rating    int    `json:"rating"`
	SessionID string `json:"session_id"`
}

func (h *APIHandler) RateStoryHandler(w http.ResponseWriter, r *http.Request) {
	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid story ID", http.StatusBadRequest)
		return
	}

	var req RateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	story, err := h.storyService.GetStory(storyID)
	if err != nil {
		log.Printf("Error verifying story %d for rating: %v", storyID, err)
		http.Error(w, "Failed to rate story", http.StatusInternalServerError)
		return
	}
	if story == nil {
		http.Error(w, "Story not found", http.StatusNotFound)
		return
	}

	stats, err := h.storyService.RateStory(storyID, req.SessionID, req.Rating)
	if err != nil {
		log.Printf("Error rating story %d: %v", storyID, err)
		http.Error(w, "Failed to rate story", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Rating submitted",
		"average_rating": stats.Average,
		"rating_count":   stats.Count,
	})
}

func (h *APIHandler) RatingStatsHandler(w http.ResponseWriter, r *http.Request) {
	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid story ID", http.StatusBadRequest)
		return
	}

	story, err := h.storyService.GetStory(storyID)
	if err != nil {
		log.Printf("Error verifying story %d for rating stats: %v", storyID, err)
		http.Error(w, "Failed to get rating stats", http.StatusInternalServerError)
		return
	}
	if story == nil {
		http.Error(w, "Story not found", http.StatusNotFound)
		return
	}

	stats, distribution, err := h.storyService.RatingStats(storyID)
	if err != nil {
		log.Printf("Error getting rating stats for story %d: %v", storyID, err)
		http.Error(w, "Failed to get rating stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"average":      stats.Average,
		"count":        stats.Count,
		"distribution": distribution,
	})
}

func (h *APIHandler) ShareStoryHandler(w http.ResponseWriter, r *http.Request) {
	storyID, err := strconv.ParseInt(chi.URLParam(r, "storyID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid story ID", http.StatusBadRequest)
		return
	}

	token, shareURL, err := h.storyService.ShareStory(storyID)
	if err != nil {
		log.Printf("Error sharing story %d: %v", storyID, err)
		http.Error(w, "Failed to generate share link", http.StatusInternalServerError)
		return
	}
	if token == "" {
		http.Error(w, "Story not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"share_token": token,
		"share_url":   shareURL,
	})
}

func (h *APIHandler) SharedStoryHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	story, err := h.storyService.StoryByShareToken(token)
	if err != nil {
		log.Printf("Error getting story by share token: %v", err)
		http.Error(w, "Failed to get story", http.StatusInternalServerError)
		return
	}
	if story == nil {
		http.Error(w, "Story not found", http.StatusNotFound)
		return
	}

	h.writeStory(w, http.StatusOK, story)
}

type UniversePromptRequest struct {
	Universe string `json:"universe"`
}

func (h *APIHandler) UniversePromptHandler(w http.ResponseWriter, r *http.Request) {
	var req UniversePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Universe == "" {
		http.Error(w, "Universe is required", http.StatusBadRequest)
		return
	}

	prompt, err := h.storyService.GenerateUniversePrompt(r.Context(), req.Universe)
	if err != nil {
		log.Printf("Error generating system prompt for universe %q: %v", req.Universe, err)
		http.Error(w, "Failed to generate system prompt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"universe":      req.Universe,
		"system_prompt": prompt,
	})
}

// writeStory shapes a Story row into the full projection, attaching the
// current rating aggregates and the share URL when a token exists.
func (h *APIHandler) writeStory(w http.ResponseWriter, status int, story *store.Story) {
	stats, _, err := h.storyService.RatingStats(story.ID)
	if err != nil {
		log.Printf("Error getting rating stats for story %d: %v", story.ID, err)
		http.Error(w, "Failed to get story", http.StatusInternalServerError)
		return
	}

	resp := storyResponse{
		ID:            story.ID,
		Universe:      story.Universe,
		WhatIf:        story.WhatIf,
		Story:         story.Story,
		WordCount:     story.WordCount,
		Rating:        story.Rating,
		AverageRating: stats.Average,
		RatingCount:   stats.Count,
		CreatedAt:     story.CreatedAt,
	}
	if story.ShareToken != nil {
		resp.ShareURL = h.storyService.ShareURL(*story.ShareToken)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
