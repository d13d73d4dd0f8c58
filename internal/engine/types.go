package engine

import "time"

// RawContent is one successfully fetched content unit, handed to the
// extraction layer as-is.
type RawContent struct {
	URL        string
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
	FromCache  bool
}
