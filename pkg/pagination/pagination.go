package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts limit and offset from the query string. Missing or
// invalid values fall back to the defaults; limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	return Normalize(atoi(c.QueryParam("limit")), atoi(c.QueryParam("offset")))
}

// Normalize applies the defaults and bounds to raw values.
func Normalize(limit, offset int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Bounds returns the slice indexes of the page within total items.
func (p Params) Bounds(total int) (start, end int) {
	start = p.Offset
	if start > total {
		start = total
	}
	end = start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Meta describes the page returned alongside a paginated list.
type Meta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewMeta builds the page description for total items.
func NewMeta(p Params, total int) Meta {
	return Meta{Total: total, Limit: p.Limit, Offset: p.Offset, HasMore: p.HasNext(total)}
}
