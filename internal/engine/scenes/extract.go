package scenes

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_scenes/internal/engine"
)

// Strategy parses one source family's pages. Implementations live in the
// sources package; adding a source means adding a variant, not touching
// shared code.
type Strategy interface {
	// DiscoverEpisodes parses a show index page into absolute episode URLs.
	DiscoverEpisodes(raw *engine.RawContent) []string
	// Extract parses one episode page into scene candidates for ch.
	// Must not fail on malformed input: degrade to zero candidates.
	Extract(raw *engine.RawContent, ch Character) []Scene
}

// Extractor dispatches raw content to the strategy declared by the source
// descriptor and finalizes accepted candidates.
type Extractor struct {
	strategies map[string]Strategy
}

// NewExtractor builds an extractor over a strategy registry keyed by
// descriptor strategy id.
func NewExtractor(registry map[string]Strategy) *Extractor {
	return &Extractor{strategies: registry}
}

// Discover returns episode URLs found on a show index page, or nil when the
// strategy is unknown.
func (e *Extractor) Discover(raw *engine.RawContent, d SourceDescriptor) []string {
	st, ok := e.strategies[d.Strategy]
	if !ok {
		slog.Warn("extract: unknown strategy", slog.String("strategy", d.Strategy), slog.String("source", d.Name))
		return nil
	}
	return st.DiscoverEpisodes(raw)
}

// Extract runs the source's strategy over raw content and returns finalized
// scene candidates. Never errors: malformed input yields zero candidates
// and a logged anomaly.
func (e *Extractor) Extract(raw *engine.RawContent, ch Character, d SourceDescriptor) (out []Scene) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("extract: anomaly, skipping content unit",
				slog.String("url", raw.URL),
				slog.String("source", d.Name),
				slog.String("snippet", engine.TruncateAtWord(engine.CleanHTML(string(raw.Body)), 120)),
				slog.Any("panic", r),
			)
			out = nil
		}
	}()

	st, ok := e.strategies[d.Strategy]
	if !ok {
		slog.Warn("extract: unknown strategy", slog.String("strategy", d.Strategy), slog.String("source", d.Name))
		return nil
	}

	candidates := st.Extract(raw, ch)

	out = candidates[:0]
	for _, s := range candidates {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		s.Character = ch.Key
		if s.Show == "" {
			s.Show = ch.Show
		}
		if s.SourceURL == "" {
			s.SourceURL = raw.URL
		}
		if s.ExtractedAt.IsZero() {
			s.ExtractedAt = time.Now().UTC()
		}
		s.Finalize()
		out = append(out, s)
	}
	return out
}

var episodeCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)S(\d{1,2})\s*E(\d{1,2})`),
	regexp.MustCompile(`(?i)Season\s+(\d{1,2})\s+Episode\s+(\d{1,2})`),
	regexp.MustCompile(`\b(\d{1,2})x(\d{1,2})\b`),
}

// ParseEpisodeCode extracts season/episode numbers from an episode title.
// Returns zeros and an empty code when nothing matches; extraction carries
// on with unknown episode metadata rather than failing.
func ParseEpisodeCode(title string) (season, episode int, code string) {
	for _, re := range episodeCodePatterns {
		if m := re.FindStringSubmatch(title); m != nil {
			season, _ = strconv.Atoi(m[1])
			episode, _ = strconv.Atoi(m[2])
			return season, episode, fmt.Sprintf("S%02dE%02d", season, episode)
		}
	}
	return 0, 0, ""
}

// Speaker-attribution patterns for unstructured transcripts: either
// "Name: line" or an all-caps name on its own line introducing a cue.
var (
	speakerColonRe = regexp.MustCompile(`^([A-Z][A-Za-z .'\-]{0,40}?):\s+(\S.*)$`)
	speakerCapsRe  = regexp.MustCompile(`^[A-Z][A-Z .'\-]{1,40}:?$`)
	sceneMarkerRe  = regexp.MustCompile(`(?i)^(INT\.|EXT\.|SCENE\b|\[.+\]$)`)
)

const (
	contextWindow    = 10 // lines around a block inspected for mentions
	mentionThreshold = 2  // co-occurrences needed to accept without a spoken line
	minTurnsPerScene = 2
)

// GenericExtract is the fallback heuristic pass over plain transcript text:
// scan line-by-line for speaker-attribution patterns, group contiguous
// attributed lines into blocks, and accept a block only if the target
// character speaks in it or is mentioned often enough nearby.
func GenericExtract(text, title, sourceURL string, ch Character) []Scene {
	lines := strings.Split(text, "\n")
	season, episode, code := ParseEpisodeCode(title)

	var scenes []Scene
	var block []string
	var turns []DialogueTurn
	var location string
	blockStart := 0
	currentSpeaker := ""
	blankRun := 0

	flush := func(end int) {
		if len(turns) >= minTurnsPerScene && acceptBlock(lines, blockStart, end, turns, ch) {
			scenes = append(scenes, Scene{
				Season:       season,
				Episode:      episode,
				EpisodeCode:  code,
				EpisodeTitle: strings.TrimSpace(title),
				Text:         strings.Join(block, "\n"),
				Dialogue:     turns,
				Location:     location,
				Participants: participants(turns),
				SourceURL:    sourceURL,
			})
		}
		block = nil
		turns = nil
		currentSpeaker = ""
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if line == "" {
			blankRun++
			if blankRun >= 2 {
				flush(i)
				blockStart = i + 1
			}
			continue
		}
		blankRun = 0

		if sceneMarkerRe.MatchString(line) {
			flush(i)
			blockStart = i
			location = strings.Trim(line, "[]")
			continue
		}

		if m := speakerColonRe.FindStringSubmatch(line); m != nil {
			currentSpeaker = strings.TrimSpace(m[1])
			turns = append(turns, DialogueTurn{Speaker: currentSpeaker, Line: strings.TrimSpace(m[2])})
			block = append(block, line)
			continue
		}

		if speakerCapsRe.MatchString(line) {
			currentSpeaker = strings.TrimRight(line, ":")
			block = append(block, line)
			continue
		}

		if currentSpeaker != "" {
			// Continuation of the current cue.
			if len(turns) > 0 && turns[len(turns)-1].Speaker == currentSpeaker {
				turns[len(turns)-1].Line += " " + line
			} else {
				turns = append(turns, DialogueTurn{Speaker: currentSpeaker, Line: line})
			}
			block = append(block, line)
			continue
		}

		// Unattributed context line inside a block.
		if len(block) > 0 {
			block = append(block, line)
		}
	}
	flush(len(lines))

	return scenes
}

// acceptBlock decides whether a dialogue block belongs to the character:
// either the character speaks, or alias/context-clue mentions in the block
// and the surrounding narration reach the threshold. Dialogue lines outside
// the block belong to their own blocks and never count, so a block is not
// promoted just for sitting next to the character's scene.
func acceptBlock(lines []string, start, end int, turns []DialogueTurn, ch Character) bool {
	for _, t := range turns {
		if ch.SpokenBy(t.Speaker) {
			return true
		}
	}

	lo := max(0, start-contextWindow)
	hi := min(len(lines), end+contextWindow)
	count := 0
	for i := lo; i < hi; i++ {
		line := strings.TrimSpace(lines[i])
		inBlock := i >= start && i < end
		if !inBlock && (speakerColonRe.MatchString(line) || speakerCapsRe.MatchString(line)) {
			continue
		}
		count += countMentions(line, ch)
	}
	return count >= mentionThreshold
}

func countMentions(text string, ch Character) int {
	lower := strings.ToLower(text)
	n := 0
	for _, name := range ch.Names {
		n += strings.Count(lower, strings.ToLower(name))
	}
	for _, clue := range ch.ContextClues {
		n += strings.Count(lower, strings.ToLower(clue))
	}
	return n
}

// participants returns the distinct speakers of a turn sequence, in order
// of first appearance.
func participants(turns []DialogueTurn) []string {
	seen := make(map[string]bool, len(turns))
	var out []string
	for _, t := range turns {
		name := strings.TrimSpace(t.Speaker)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
