package pagination

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

type Paginator struct {
	DefaultPerPage int
	MaxPerPage     int
}

func New(defaultPerPage, maxPerPage int) Paginator {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	if maxPerPage <= 0 {
		maxPerPage = MaxPerPage
	}
	if defaultPerPage > maxPerPage {
		defaultPerPage = maxPerPage
	}
	return Paginator{DefaultPerPage: defaultPerPage, MaxPerPage: maxPerPage}
}

// Params is a 1-based page request.
type Params struct {
	Page    int
	PerPage int
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p Params) Limit() int {
	return p.PerPage
}

// Parse reads raw query values. Missing, malformed and non-positive values
// fall back to page 1 and the default page size; oversized pages are capped.
// A zero Paginator behaves like New(0, 0).
func (pg Paginator) Parse(page, perPage string) Params {
	pg = New(pg.DefaultPerPage, pg.MaxPerPage)

	p := Params{
		Page:    positiveOr(page, 1),
		PerPage: positiveOr(perPage, pg.DefaultPerPage),
	}
	if p.PerPage > pg.MaxPerPage {
		p.PerPage = pg.MaxPerPage
	}
	// Offset must not overflow; any page this far out is past the end anyway.
	if maxPage := math.MaxInt/p.PerPage + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

type Envelope struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func NewEnvelope(p Params, total int64) Envelope {
	var pages int64
	if p.PerPage > 0 && total > 0 {
		per := int64(p.PerPage)
		pages = (total + per - 1) / per
	}
	return Envelope{
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      total,
		TotalPages: pages,
	}
}

func positiveOr(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
