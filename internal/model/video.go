package model

import "strings"

// VideoRef is the normalized metadata of one YouTube video.
type VideoRef struct {
	ID           string `json:"video_id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	Duration     string `json:"duration"`
	Channel      string `json:"channel"`
	Description  string `json:"description,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
}

// TranscriptEntry is one caption segment. Offsets are in seconds.
type TranscriptEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// JoinTranscript concatenates entry texts with single spaces, in order.
func JoinTranscript(entries []TranscriptEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, " ")
}
