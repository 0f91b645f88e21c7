package pagination

// Pagination binds page/limit query parameters.
type Pagination struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PageInfo describes the window a list response covers.
type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Normalize clamps page/limit to sane bounds.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset returns the row offset for the normalized window.
func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// NewPageInfo computes the response window for a total row count.
func NewPageInfo(p Pagination, total int64) PageInfo {
	n := p.Normalize()
	pages := int(total) / n.Limit
	if int(total)%n.Limit != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return PageInfo{
		Page:       n.Page,
		Limit:      n.Limit,
		TotalCount: total,
		TotalPages: pages,
	}
}
