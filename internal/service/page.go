package service

import (
	"diarium/internal/model"
	"diarium/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// PageRequest is 1-based pagination input. Out-of-range values are clamped
// rather than rejected.
type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p PageRequest) query() repository.PageQuery {
	return repository.PageQuery{Limit: p.Size, Offset: (p.Page - 1) * p.Size}
}

// RevisionPage is the service-level DTO for paginated revisions.
type RevisionPage struct {
	Items         []model.Revision `json:"data"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int              `json:"total_elements"`
	TotalPages    int              `json:"total_pages"`
}

func newRevisionPage(res *repository.PageResult[model.Revision], p PageRequest) *RevisionPage {
	totalPages := 0
	if res.Total > 0 {
		totalPages = (res.Total + p.Size - 1) / p.Size
	}
	return &RevisionPage{
		Items:         res.Items,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: res.Total,
		TotalPages:    totalPages,
	}
}
