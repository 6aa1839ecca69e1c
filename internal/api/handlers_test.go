package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatif-novel-api/internal/core"
	"whatif-novel-api/internal/store"
)

type fakeGenerator struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeGenerator) ChatCompletion(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func fixedStory(words int) string {
	return strings.TrimSpace(strings.Repeat("word ", words))
}

func newTestRouter(t *testing.T, gen core.TextGenerator) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	storyService := core.NewStoryService(db, gen, "http://localhost:3000")
	return NewRouter(NewAPIHandler(storyService)), db
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func seedStory(t *testing.T, db *store.SQLiteStore, universe, whatIf string) *store.Story {
	t.Helper()
	story := &store.Story{
		Universe:  universe,
		WhatIf:    whatIf,
		Story:     "a seeded story text",
		WordCount: 4,
		IsPublic:  true,
	}
	require.NoError(t, db.CreateStory(story))
	return story
}

func TestRootEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeGenerator{})

	rec := doJSON(t, router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, "What If Novel AI API", payload["message"])
	assert.Contains(t, payload, "endpoints")
}

func TestListUniversesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeGenerator{})

	rec := doJSON(t, router, http.MethodGet, "/universes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(4), payload["count"])
	universes, ok := payload["universes"].([]any)
	require.True(t, ok)
	assert.Equal(t, "Harry Potter", universes[0])
}

func TestGenerateStoryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &fakeGenerator{response: fixedStory(650)})

	rec := doJSON(t, router, http.MethodPost, "/story/generate", map[string]any{
		"universe": "Harry Potter",
		"what_if":  "Harry was sorted into Slytherin",
		"length":   "short",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(650), payload["word_count"])
	assert.Equal(t, float64(0), payload["rating"])
	assert.Equal(t, float64(0), payload["average_rating"])
	assert.Equal(t, float64(0), payload["rating_count"])
	assert.Equal(t, "Harry Potter", payload["universe"])
	assert.Equal(t, "Harry was sorted into Slytherin", payload["what_if"])
	assert.NotEmpty(t, payload["story"])
	assert.NotEmpty(t, payload["created_at"])
	assert.Greater(t, payload["id"].(float64), float64(0))
	assert.NotContains(t, payload, "share_url", "no share URL before a token is assigned")
}

func TestGenerateStoryValidation(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{response: fixedStory(10)})

	rec := doJSON(t, router, http.MethodPost, "/story/generate", map[string]any{
		"universe": "Harry Potter",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing what_if")

	rec = doJSON(t, router, http.MethodPost, "/story/generate", map[string]any{
		"universe": "Atlantis",
		"what_if":  "the city never sank",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "universe outside the catalog")

	summaries, err := db.ListRecentStories(20)
	require.NoError(t, err)
	assert.Empty(t, summaries, "rejected requests must not persist anything")
}

func TestGenerateStoryFailure(t *testing.T) {
	router, _ := newTestRouter(t, &fakeGenerator{err: fmt.Errorf("%w: provider timeout", core.ErrGenerationFailed)})

	rec := doJSON(t, router, http.MethodPost, "/story/generate", map[string]any{
		"universe": "Star Wars",
		"what_if":  "Anakin never turned",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Generic message only; provider detail stays in the logs.
	assert.NotContains(t, rec.Body.String(), "provider timeout")
}

func TestGenerateCustomStoryEndpoint(t *testing.T) {
	gen := &fakeGenerator{response: fixedStory(42)}
	router, _ := newTestRouter(t, gen)

	rec := doJSON(t, router, http.MethodPost, "/story/generate-custom", map[string]any{
		"universe": "Atlantis",
		"what_if":  "the city never sank",
		"length":   "short",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(42), payload["word_count"])
	assert.Equal(t, "Atlantis", payload["universe"])
	assert.Contains(t, gen.lastUser,
		"You are an expert in the Atlantis universe. Write in the style of Atlantis.")

	rec = doJSON(t, router, http.MethodPost, "/story/generate-custom", map[string]any{
		"universe":      "Atlantis",
		"what_if":       "the city never sank",
		"system_prompt": "You are a chronicler of the drowned city.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gen.lastUser, "You are a chronicler of the drowned city.")
}

func TestGetStoryEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})
	story := seedStory(t, db, "Star Wars", "Han shot second")

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/story/%d", story.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(story.ID), payload["id"])
	assert.Equal(t, "a seeded story text", payload["story"])

	rec = doJSON(t, router, http.MethodGet, "/story/999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/story/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateStoryEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})
	story := seedStory(t, db, "Marvel MCU", "Thanos hesitated")
	path := fmt.Sprintf("/story/%d/rate", story.ID)

	rec := doJSON(t, router, http.MethodPost, path, map[string]any{
		"rating": 5, "session_id": "session-a",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, float64(5), payload["average_rating"])
	assert.Equal(t, float64(1), payload["rating_count"])

	rec = doJSON(t, router, http.MethodPost, path, map[string]any{
		"rating": 3, "session_id": "session-b",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payload = decodeBody(t, rec)
	assert.Equal(t, float64(4), payload["average_rating"])
	assert.Equal(t, float64(2), payload["rating_count"])

	// Same session again: updated, not added.
	rec = doJSON(t, router, http.MethodPost, path, map[string]any{
		"rating": 1, "session_id": "session-b",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	payload = decodeBody(t, rec)
	assert.Equal(t, float64(3), payload["average_rating"])
	assert.Equal(t, float64(2), payload["rating_count"])
}

func TestRateStoryValidation(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})
	story := seedStory(t, db, "Marvel MCU", "Thanos hesitated")
	path := fmt.Sprintf("/story/%d/rate", story.ID)

	for _, invalid := range []int{0, 6, -1} {
		rec := doJSON(t, router, http.MethodPost, path, map[string]any{
			"rating": invalid, "session_id": uuid.NewString(),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "rating %d must be rejected", invalid)
	}

	rec := doJSON(t, router, http.MethodPost, path, map[string]any{"rating": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing session_id")

	stats, err := db.GetRatingStats(story.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Count, "rejected submissions must not mutate the database")

	rec = doJSON(t, router, http.MethodPost, "/story/999999/rate", map[string]any{
		"rating": 4, "session_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRatingStatsEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})
	story := seedStory(t, db, "Lord of the Rings", "the eagles flew them in")

	require.NoError(t, db.UpsertRating(story.ID, "session-a", 5))
	require.NoError(t, db.UpsertRating(story.ID, "session-b", 5))
	require.NoError(t, db.UpsertRating(story.ID, "session-c", 2))

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/story/%d/ratings", story.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(4), payload["average"])
	assert.Equal(t, float64(3), payload["count"])

	distribution, ok := payload["distribution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), distribution["5"])
	assert.Equal(t, float64(1), distribution["2"])
	assert.Equal(t, float64(0), distribution["1"])
	assert.Len(t, distribution, 5, "all five buckets are always present")

	rec = doJSON(t, router, http.MethodGet, "/story/999999/ratings", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareEndpoints(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})
	story := seedStory(t, db, "Harry Potter", "Neville was the chosen one")
	path := fmt.Sprintf("/story/%d/share", story.ID)

	rec := doJSON(t, router, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)

	token, ok := payload["share_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	assert.Equal(t, "http://localhost:3000/share/"+token, payload["share_url"])

	// Second request returns the same token.
	rec = doJSON(t, router, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, token, decodeBody(t, rec)["share_token"])

	// The token is the capability: fetching by it needs nothing else.
	rec = doJSON(t, router, http.MethodGet, "/story/share/"+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	shared := decodeBody(t, rec)
	assert.Equal(t, float64(story.ID), shared["id"])
	assert.Equal(t, "http://localhost:3000/share/"+token, shared["share_url"])

	rec = doJSON(t, router, http.MethodGet, "/story/share/unknown-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/story/999999/share", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})
	seedStory(t, db, "Harry Potter", "first")
	seedStory(t, db, "Star Wars", "second")
	seedStory(t, db, "Marvel MCU", "third")

	rec := doJSON(t, router, http.MethodGet, "/story/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, float64(3), payload["count"])
	stories, ok := payload["stories"].([]any)
	require.True(t, ok)
	require.Len(t, stories, 3)

	first, ok := stories[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "third", first["what_if"], "newest first")
	assert.NotContains(t, first, "story", "summaries exclude the story text")
	assert.Contains(t, first, "average_rating")
	assert.Contains(t, first, "rating_count")

	rec = doJSON(t, router, http.MethodGet, "/story/history?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = doJSON(t, router, http.MethodGet, "/story/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendingEndpoint(t *testing.T) {
	router, db := newTestRouter(t, &fakeGenerator{})

	low := seedStory(t, db, "Harry Potter", "low")
	high := seedStory(t, db, "Star Wars", "high")
	require.NoError(t, db.UpsertRating(low.ID, "session-a", 2))
	require.NoError(t, db.UpsertRating(high.ID, "session-a", 5))

	rec := doJSON(t, router, http.MethodGet, "/story/trending", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	stories, ok := payload["stories"].([]any)
	require.True(t, ok)
	require.Len(t, stories, 2)

	first, ok := stories[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "high", first["what_if"])
	assert.Equal(t, float64(5), first["average_rating"])
}

func TestUniversePromptEndpoint(t *testing.T) {
	gen := &fakeGenerator{response: "You are an expert in the Atlantis universe..."}
	router, _ := newTestRouter(t, gen)

	rec := doJSON(t, router, http.MethodPost, "/universe/system-prompt", map[string]any{
		"universe": "Atlantis",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	payload := decodeBody(t, rec)
	assert.Equal(t, "Atlantis", payload["universe"])
	assert.Equal(t, "You are an expert in the Atlantis universe...", payload["system_prompt"])

	rec = doJSON(t, router, http.MethodPost, "/universe/system-prompt", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
