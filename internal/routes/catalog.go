package routes

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
)

// Catalog is the read-only set of bus lines with their route metadata.
type Catalog struct {
	routes map[string]json.RawMessage
	lines  []string
}

// Load reads a JSON object keyed by line from path. A missing or invalid
// file yields an empty catalog, which accepts any line.
func Load(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("route catalog unavailable", "path", path, "error", err)
		return New(nil)
	}
	var routes map[string]json.RawMessage
	if err := json.Unmarshal(data, &routes); err != nil {
		logger.Warn("route catalog invalid", "path", path, "error", err)
		return New(nil)
	}
	logger.Info("route catalog loaded", "path", path, "lines", len(routes))
	return New(routes)
}

func New(routes map[string]json.RawMessage) *Catalog {
	c := &Catalog{routes: map[string]json.RawMessage{}, lines: []string{}}
	for line, meta := range routes {
		c.routes[line] = meta
		c.lines = append(c.lines, line)
	}
	sort.Strings(c.lines)
	return c
}

func (c *Catalog) Len() int { return len(c.lines) }

func (c *Catalog) Has(line string) bool {
	_, ok := c.routes[line]
	return ok
}

// Lines returns the known line identifiers, sorted.
func (c *Catalog) Lines() []string {
	return append([]string{}, c.lines...)
}

func (c *Catalog) Lookup(line string) (json.RawMessage, bool) {
	meta, ok := c.routes[line]
	return meta, ok
}
