package scenes

import (
	"fmt"
	"strings"
)

// Character is one extraction target: a character key plus the alias names
// and context clues used for attribution.
type Character struct {
	Key          string
	Names        []string // alias spellings seen in transcripts
	Show         string
	ContextClues []string // phrases that co-occur with the character
}

// SpokenBy reports whether speaker refers to this character.
func (c Character) SpokenBy(speaker string) bool {
	s := strings.ToLower(speaker)
	for _, n := range c.Names {
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// SourceDescriptor is static per-site configuration. Read-only after load;
// per-invocation overrides go through copies.
type SourceDescriptor struct {
	Name       string  // source key, e.g. "springfield"
	Strategy   string  // extraction strategy id (see sources package)
	BaseURL    string
	IndexPath  string  // show index path pattern with one %s for the slug
	SlugSep    string  // how the show name is slugged into URLs
	RateLimit  float64 // requests per second hint
	RateBurst  int
}

// IndexURL builds the show index URL for the given show name.
func (d SourceDescriptor) IndexURL(show string) string {
	slug := strings.ToLower(strings.TrimSpace(show))
	sep := d.SlugSep
	if sep == "" {
		sep = "-"
	}
	slug = strings.Join(strings.Fields(slug), sep)
	return d.BaseURL + fmt.Sprintf(d.IndexPath, slug)
}

// Catalog enumerates known transcript sources and target characters.
// Immutable after construction.
type Catalog struct {
	characters map[string]Character
	sources    []SourceDescriptor
}

// NewCatalog builds a catalog from explicit tables. Both slices are copied.
func NewCatalog(chars []Character, sources []SourceDescriptor) *Catalog {
	m := make(map[string]Character, len(chars))
	for _, c := range chars {
		m[c.Key] = c
	}
	return &Catalog{characters: m, sources: append([]SourceDescriptor(nil), sources...)}
}

// Character looks up a target character by key.
func (c *Catalog) Character(key string) (Character, bool) {
	ch, ok := c.characters[key]
	return ch, ok
}

// Characters returns all target characters.
func (c *Catalog) Characters() []Character {
	out := make([]Character, 0, len(c.characters))
	for _, ch := range c.characters {
		out = append(out, ch)
	}
	return out
}

// SourcesFor returns descriptor copies for the character. Callers may
// mutate the copies freely; shared catalog state stays untouched.
func (c *Catalog) SourcesFor(ch Character) []SourceDescriptor {
	return append([]SourceDescriptor(nil), c.sources...)
}

// WithShow returns a copy of ch with the show replaced. Copy-on-override:
// the catalog's own entry is never mutated.
func (ch Character) WithShow(show string) Character {
	if show == "" {
		return ch
	}
	out := ch
	out.Show = show
	return out
}

// DefaultCharacters is the built-in extraction target table.
func DefaultCharacters() []Character {
	return []Character{
		{
			Key:          "tywin_lannister",
			Names:        []string{"Tywin", "Lord Tywin", "Tywin Lannister", "Lord Lannister"},
			Show:         "Game of Thrones",
			ContextClues: []string{"Father", "my lord"},
		},
		{
			Key:          "chuck_mcgill",
			Names:        []string{"Chuck", "Charles McGill", "Charles", "McGill"},
			Show:         "Better Call Saul",
			ContextClues: []string{"Brother", "Chuck"},
		},
		{
			Key:          "general_partagaz",
			Names:        []string{"Partagaz", "Major Partagaz", "General"},
			Show:         "Andor",
			ContextClues: []string{"General", "Sir"},
		},
		{
			Key:          "logan_roy",
			Names:        []string{"Logan", "Logan Roy", "Mr. Roy"},
			Show:         "Succession",
			ContextClues: []string{"Dad", "Father", "Pop"},
		},
	}
}

// DefaultSources is the built-in transcript source table.
func DefaultSources() []SourceDescriptor {
	return []SourceDescriptor{
		{
			Name:      "springfield",
			Strategy:  "structured",
			BaseURL:   "https://www.springfieldspringfield.co.uk",
			IndexPath: "/episode_scripts.php?tv-show=%s",
			SlugSep:   "-",
			RateLimit: 0.5,
			RateBurst: 1,
		},
		{
			Name:      "subslikescript",
			Strategy:  "subtitle",
			BaseURL:   "https://subslikescript.com",
			IndexPath: "/search?q=%s",
			SlugSep:   "_",
			RateLimit: 0.5,
			RateBurst: 1,
		},
		{
			Name:      "foreverdreaming",
			Strategy:  "forum",
			BaseURL:   "https://transcripts.foreverdreaming.org",
			IndexPath: "/search.php?keywords=%s",
			SlugSep:   "+",
			RateLimit: 0.3,
			RateBurst: 1,
		},
	}
}
