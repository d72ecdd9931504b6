package trip

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

var columns = []string{"id", "user", "line", "date", "time", "origin", "destination", "note", "created_at"}

// legacyIDSpace derives IDs for rows written before the id column existed.
var legacyIDSpace = uuid.MustParse("5b0f7a52-3c1e-4d8e-9f0a-6f1c2b7d9e41")

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Encode writes trips as CSV with a header row.
func Encode(trips []Trip) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, t := range trips {
		created := ""
		if !t.CreatedAt.IsZero() {
			created = t.CreatedAt.Format(time.RFC3339)
		}
		clock, ok := normalizeClock(t.Time)
		if !ok {
			clock = t.Time
		}
		row := []string{t.ID, t.User, t.Line, t.Date, clock, t.Origin, t.Destination, t.Note, created}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// headerAliases maps the column names of older snapshots, written in
// Portuguese, onto the current ones.
var headerAliases = map[string]string{
	"usuario":   "user",
	"linha":     "line",
	"data":      "date",
	"hora":      "time",
	"origem":    "origin",
	"destino":   "destination",
	"obs":       "note",
	"timestamp": "created_at",
}

// ErrMalformedRows reports rows that could not be read. Decode still returns
// every row it could read alongside it.
var ErrMalformedRows = errors.New("malformed rows skipped")

// Decode reads a CSV snapshot. Columns are matched by header name, so files
// missing optional columns still load. Rows without an id get one derived
// from their content and position, which keeps repeated decodes identical.
// Rows that are not valid CSV are skipped and reported with ErrMalformedRows.
func Decode(data []byte) ([]Trip, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	if _, ok := index["user"]; !ok {
		return nil, fmt.Errorf("missing user column in header %v", header)
	}
	if _, ok := index["line"]; !ok {
		return nil, fmt.Errorf("missing line column in header %v", header)
	}

	var trips []Trip
	var skipped []int
	for n := 0; ; n++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped = append(skipped, parseErr.StartLine)
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", n+1, err)
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		t := Trip{
			ID:          field("id"),
			User:        field("user"),
			Line:        field("line"),
			Date:        field("date"),
			Time:        field("time"),
			Origin:      field("origin"),
			Destination: field("destination"),
			Note:        field("note"),
			CreatedAt:   parseCreatedAt(field("created_at")),
		}
		if t.ID == "" {
			t.ID = uuid.NewSHA1(legacyIDSpace, []byte(fmt.Sprintf("%d\x00%s", n, strings.Join(row, "\x00")))).String()
		}
		trips = append(trips, t)
	}
	if len(skipped) > 0 {
		return trips, fmt.Errorf("%w: lines %v", ErrMalformedRows, skipped)
	}
	return trips, nil
}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
