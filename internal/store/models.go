package store

import "time"

type Story struct {
	ID         int64     `json:"id"`
	Universe   string    `json:"universe"`
	WhatIf     string    `json:"what_if"`
	Story      string    `json:"story"`
	WordCount  int       `json:"word_count"`
	Rating     int       `json:"rating"` // Legacy single rating, kept for compatibility
	IsPublic   bool      `json:"is_public"`
	ShareToken *string   `json:"-"` // Nullable, unique when present
	CreatedAt  time.Time `json:"created_at"`
}

type Rating struct {
	ID        int64     `json:"id"`
	StoryID   int64     `json:"story_id"`
	SessionID string    `json:"session_id"` // Opaque browser-session string, not a user account
	Value     int       `json:"rating_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StorySummary is a Story row joined with its rating aggregates, without the
// full story text. Used by the history and trending listings.
type StorySummary struct {
	ID            int64     `json:"id"`
	Universe      string    `json:"universe"`
	WhatIf        string    `json:"what_if"`
	WordCount     int       `json:"word_count"`
	Rating        int       `json:"rating"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// RatingStats holds the derived aggregates for one story. Average is the
// arithmetic mean of rating values rounded to one decimal, 0 with no ratings.
type RatingStats struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
