// Package pagination parses limit/offset query parameters and shapes paged
// list responses.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/platform/apperr"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit and ?offset. Missing values take the defaults, a
// limit above MaxLimit is clamped, and malformed or negative values are
// rejected.
func FromContext(c echo.Context) (Params, error) {
	p := Params{Limit: DefaultLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Params{}, apperr.Validation("limit", "must be a positive integer, got %q", raw)
		}
		p.Limit = min(n, MaxLimit)
	}
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Params{}, apperr.Validation("offset", "must be a non-negative integer, got %q", raw)
		}
		p.Offset = n
	}
	return p, nil
}

// Response is one page of a listing. Data is never null in JSON.
type Response[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func NewResponse[T any](data []T, total int, p Params) *Response[T] {
	if data == nil {
		data = []T{}
	}
	return &Response[T]{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(data) < total,
	}
}
