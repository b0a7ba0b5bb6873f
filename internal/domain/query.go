package domain

import (
	"math"
	"time"
)

// TimeRange is an inclusive range; nil bounds are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether neither bound is set.
func (r TimeRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// FloatRange is an inclusive range; nil bounds are open.
type FloatRange struct {
	Min *float64
	Max *float64
}

// IsZero reports whether neither bound is set.
func (r FloatRange) IsZero() bool {
	return r.Min == nil && r.Max == nil
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize clamps the request to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Limit returns the SQL LIMIT for the page.
func (p Pagination) Limit() int {
	return p.Normalize().PageSize
}

// Offset returns the SQL OFFSET for the page.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// PageInfo is returned alongside list results.
type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPageInfo computes page totals for a request.
func NewPageInfo(p Pagination, total int) PageInfo {
	n := p.Normalize()
	return PageInfo{
		Page:       n.Page,
		PageSize:   n.PageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(n.PageSize))),
	}
}
