// Package pagination encodes forward-only page cursors and bounds SELECT statements.
//
// A cursor is an opaque base64url token. Its JSON content ({"offset":n,"limit":m}) is not
// part of the contract. Pages are offset based, so rows written between two requests can
// shift page boundaries; this is acceptable for ad hoc browsing.
package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Page size bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// Cursor is the decoded form of a page token.
type Cursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// Encode returns the opaque token for a page.
func Encode(offset, limit int) string {
	// Marshal of two ints cannot fail.
	data, _ := json.Marshal(Cursor{Offset: offset, Limit: limit})
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a token. Malformed, corrupted or out-of-range tokens report false;
// callers then start from the first page.
func Decode(token string) (Cursor, bool) {
	if token == "" {
		return Cursor{}, false
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// tolerate padded tokens
		data, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return Cursor{}, false
		}
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, false
	}
	if c.Offset < 0 || c.Limit < 1 {
		return Cursor{}, false
	}
	return c, true
}

// Options is the resolved position of the page to fetch.
type Options struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ParseOptions resolves a page request. A valid cursor moves forward by its own limit;
// anything else starts at offset 0. The limit is the requested one, or the cursor's when
// none is requested, or DefaultPageSize, clamped to [1, maxPageSize]. A maxPageSize
// below 1 means MaxPageSize.
func ParseOptions(cursor string, limit, maxPageSize int) Options {
	if maxPageSize < 1 {
		maxPageSize = MaxPageSize
	}

	opts := Options{Limit: limit}
	if c, ok := Decode(cursor); ok {
		opts.Offset = c.Offset + c.Limit
		if opts.Limit <= 0 {
			opts.Limit = c.Limit
		}
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultPageSize
	}
	opts.Limit = Clamp(opts.Limit, maxPageSize)
	return opts
}

// Clamp bounds limit to [1, max].
func Clamp(limit, max int) int {
	if limit < 1 {
		return 1
	}
	if limit > max {
		return max
	}
	return limit
}
