// Package scenes turns raw fetched transcripts into structured, deduplicated
// scene records for target characters.
package scenes

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/anatolykoptev/go_scenes/internal/engine"
)

// DialogueTurn is one attributed line within a scene.
type DialogueTurn struct {
	Speaker string `json:"speaker"`
	Line    string `json:"line"`
}

// Scene is a contiguous transcript excerpt attributed to a target character.
// ID is a deterministic content fingerprint; re-extracting identical content
// never creates a second row.
type Scene struct {
	ID           string         `json:"id"`
	Character    string         `json:"character"`
	Show         string         `json:"show"`
	Season       int            `json:"season,omitempty"`
	Episode      int            `json:"episode,omitempty"`
	EpisodeCode  string         `json:"episode_code,omitempty"`
	EpisodeTitle string         `json:"episode_title,omitempty"`
	Text         string         `json:"text"`
	Dialogue     []DialogueTurn `json:"dialogue"`
	Location     string         `json:"location,omitempty"`
	Participants []string       `json:"participants"`
	SourceURL    string         `json:"source_url"`
	ExtractedAt  time.Time      `json:"extracted_at"`
	WordCount    int            `json:"word_count"`
}

// Fingerprint derives the deterministic scene identifier from normalized
// scene text, episode code and character key.
func Fingerprint(text, episodeCode, character string) string {
	h := sha256.Sum256([]byte(engine.NormalizeText(text) + "|" + episodeCode + "|" + character))
	return fmt.Sprintf("%x", h[:8])
}

// Finalize fills the derived Scene fields: identifier and word count.
// Word count is always recomputed from the text, never trusted from the
// source.
func (s *Scene) Finalize() {
	s.WordCount = engine.WordCount(s.Text)
	s.ID = Fingerprint(s.Text, s.EpisodeCode, s.Character)
}
