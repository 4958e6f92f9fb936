package sqlite

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds SQLite-specific configuration.
// Parsed from core.ConnectionConfig.Params using mapstructure.
type Params struct {
	// Pragmas applied to every connection (e.g., foreign_keys: "1", journal_mode: "wal")
	Pragmas map[string]string `mapstructure:"pragmas"`

	// BusyTimeout in milliseconds before a locked database returns SQLITE_BUSY
	BusyTimeout int `mapstructure:"busy_timeout"`

	// ReadOnly opens the database file read-only
	ReadOnly bool `mapstructure:"read_only"`
}

// ParseParams decodes adapter params into Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid sqlite params: %w", err)
	}
	return p, nil
}

// buildDSN renders a modernc.org/sqlite DSN with _pragma query parameters.
func buildDSN(path string, p *Params) string {
	if path == "" {
		path = ":memory:"
	}

	pragmas := make(map[string]string, len(p.Pragmas)+1)
	for k, v := range p.Pragmas {
		pragmas[strings.ToLower(k)] = v
	}
	if p.BusyTimeout > 0 {
		pragmas["busy_timeout"] = fmt.Sprint(p.BusyTimeout)
	}
	if p.ReadOnly {
		pragmas["query_only"] = "1"
	}
	if len(pragmas) == 0 {
		return path
	}

	names := make([]string, 0, len(pragmas))
	for k := range pragmas {
		names = append(names, k)
	}
	sort.Strings(names)

	q := make([]string, len(names))
	for i, k := range names {
		q[i] = "_pragma=" + url.QueryEscape(k+"("+pragmas[k]+")")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(q, "&")
}
