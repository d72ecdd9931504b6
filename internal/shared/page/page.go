// Package page holds the pagination parameters shared by the history and
// feed listings.
package page

import (
	"math"
	"strconv"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// MaxPage keeps Offset from overflowing at any limit up to MaxLimit.
	MaxPage = math.MaxInt / MaxLimit
)

// Params is a 1-indexed page with a bounded limit.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// New builds Params from raw query values. Empty or invalid values fall back
// to page 1 and DefaultLimit; the page is capped at MaxPage and the limit at
// MaxLimit.
func New(rawPage, rawLimit string) Params {
	p := Params{Page: 1, Limit: DefaultLimit}
	if n, err := strconv.Atoi(rawPage); err == nil && n >= 1 {
		p.Page = min(n, MaxPage)
	}
	if n, err := strconv.Atoi(rawLimit); err == nil && n >= 1 {
		p.Limit = min(n, MaxLimit)
	}
	return p
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Bounds returns the [start, end) slice indexes of this page over total items.
// Pages past the end, or with a non-positive page or limit, are empty.
func (p Params) Bounds(total int) (int, int) {
	if p.Page < 1 || p.Limit < 1 || p.Page-1 > total/p.Limit {
		return total, total
	}
	start := (p.Page - 1) * p.Limit
	return start, min(start+p.Limit, total)
}

// Slice returns the items of this page.
func Slice[T any](items []T, p Params) []T {
	start, end := p.Bounds(len(items))
	return items[start:end]
}
