package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"whatif-novel-api/internal/store"
)

const (
	creativeWriterInstruction = "You are a creative writer who specializes in alternative universe fiction."

	promptWriterInstruction = "You are an expert at writing system prompts for creative writing assistants. " +
		"Return only the prompt text itself, nothing else."

	storyTemperature = 0.8 // Higher temperature for more creativity
	storyMaxTokens   = 3000

	promptTemperature = 0.7
	promptMaxTokens   = 400

	// 24 random bytes before encoding makes share tokens infeasible to guess.
	shareTokenBytes = 24
)

// ErrUnsupportedUniverse is returned by the standard generation path when the
// requested universe is not in the catalog.
var ErrUnsupportedUniverse = errors.New("universe not supported")

var lengthSpecs = map[string]string{
	"short":  "500-800 words, focus on one key scene",
	"medium": "1000-1500 words, include 2-3 key scenes with character development",
	"long":   "1800-2500 words, full narrative arc with multiple scenes and deeper exploration",
}

type StoryService struct {
	dbStore      *store.SQLiteStore
	llm          TextGenerator
	shareBaseURL string
}

func NewStoryService(db *store.SQLiteStore, llm TextGenerator, shareBaseURL string) *StoryService {
	return &StoryService{
		dbStore:      db,
		llm:          llm,
		shareBaseURL: strings.TrimRight(shareBaseURL, "/"),
	}
}

// GenerateStory builds the prompt for a cataloged universe, calls the model
// and persists the result. Persistence happens strictly after the model call
// returns, so no database work is held open across it.
func (s *StoryService) GenerateStory(ctx context.Context, universe, whatIf, length string) (*store.Story, error) {
	info, ok := LookupUniverse(universe)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedUniverse, universe)
	}

	prompt := buildStoryPrompt(info.Context, universe, whatIf, length)
	text, err := s.llm.ChatCompletion(ctx, creativeWriterInstruction, prompt, storyTemperature, storyMaxTokens)
	if err != nil {
		return nil, err
	}

	return s.persistStory(universe, whatIf, text)
}

// GenerateCustomStory generates for a universe outside the static catalog,
// using the caller-supplied context string. With no context supplied a
// minimal one is synthesized from the universe name.
func (s *StoryService) GenerateCustomStory(ctx context.Context, universe, systemPrompt, whatIf, length string) (*store.Story, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = fmt.Sprintf("You are an expert in the %s universe. Write in the style of %s.", universe, universe)
	}

	prompt := buildStoryPrompt(systemPrompt, universe, whatIf, length)
	text, err := s.llm.ChatCompletion(ctx, creativeWriterInstruction, prompt, storyTemperature, storyMaxTokens)
	if err != nil {
		return nil, err
	}

	return s.persistStory(universe, whatIf, text)
}

// GenerateUniversePrompt asks the model to draft a reusable context template
// for an arbitrary universe name. The word target is a hint to the model, not
// validated on the way back.
func (s *StoryService) GenerateUniversePrompt(ctx context.Context, universe string) (string, error) {
	request := fmt.Sprintf(
		"Write a system prompt of 150-200 words for an AI storyteller that is an expert in the %s universe. "+
			"Describe the universe's tone, narrative style, major characters, and settings, "+
			"and instruct the AI to stay true to its rules when writing stories.", universe)

	text, err := s.llm.ChatCompletion(ctx, promptWriterInstruction, request, promptTemperature, promptMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *StoryService) persistStory(universe, whatIf, text string) (*store.Story, error) {
	story := &store.Story{
		Universe:  universe,
		WhatIf:    whatIf,
		Story:     text,
		WordCount: wordCount(text),
		Rating:    0,
		IsPublic:  true,
	}
	if err := s.dbStore.CreateStory(story); err != nil {
		return nil, fmt.Errorf("failed to save generated story: %w", err)
	}
	return story, nil
}

func (s *StoryService) GetStory(id int64) (*store.Story, error) {
	return s.dbStore.GetStoryByID(id)
}

func (s *StoryService) RecentStories(limit int) ([]store.StorySummary, error) {
	return s.dbStore.ListRecentStories(limit)
}

func (s *StoryService) TrendingStories(limit int) ([]store.StorySummary, error) {
	return s.dbStore.ListTrendingStories(limit)
}

// RateStory records one session's 1-5 star judgment. A repeat submission from
// the same session updates the existing row instead of adding one. The
// returned stats reflect the submission.
func (s *StoryService) RateStory(storyID int64, sessionID string, value int) (*store.RatingStats, error) {
	if err := s.dbStore.UpsertRating(storyID, sessionID, value); err != nil {
		return nil, err
	}
	return s.dbStore.GetRatingStats(storyID)
}

func (s *StoryService) RatingStats(storyID int64) (*store.RatingStats, map[int]int, error) {
	stats, err := s.dbStore.GetRatingStats(storyID)
	if err != nil {
		return nil, nil, err
	}
	distribution, err := s.dbStore.GetRatingDistribution(storyID)
	if err != nil {
		return nil, nil, err
	}
	return stats, distribution, nil
}

// ShareStory assigns a share token on first call and returns the same token
// on every later call. An empty token means the story does not exist.
func (s *StoryService) ShareStory(storyID int64) (token string, shareURL string, err error) {
	candidate, err := newShareToken()
	if err != nil {
		return "", "", err
	}

	// First write wins at the storage layer, so concurrent calls for the
	// same story agree on one token.
	token, err = s.dbStore.AssignShareToken(storyID, candidate)
	if err != nil || token == "" {
		return "", "", err
	}
	return token, s.ShareURL(token), nil
}

func (s *StoryService) StoryByShareToken(token string) (*store.Story, error) {
	return s.dbStore.GetStoryByShareToken(token)
}

func (s *StoryService) ShareURL(token string) string {
	return fmt.Sprintf("%s/share/%s", s.shareBaseURL, token)
}

func buildStoryPrompt(universeContext, universe, whatIf, length string) string {
	spec, ok := lengthSpecs[length]
	if !ok {
		length = "medium"
		spec = lengthSpecs[length]
	}

	return fmt.Sprintf(`%s

Write a %s alternative story exploring this 'What If' scenario:

**What If: %s**

Guidelines:
- Length: %s
- Stay true to the universe's tone, rules, and character personalities
- Make it compelling with conflict, emotion, and resolution
- Include specific details from the %s universe
- Write a complete story with beginning, middle, and end

Begin the story now:`, universeContext, length, whatIf, spec, universe)
}

// wordCount is the count of whitespace-delimited tokens, matching how word
// counts were computed for already-stored stories. It is not a linguistic
// word count.
func wordCount(text string) int {
	return len(strings.Fields(text))
}

func newShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
