package service

import (
	"context"
	"strings"

	"diarium/internal/model"
	"diarium/internal/repository"
)

// SearchRequest carries one search call: criteria, visibility, collapse flag,
// ordering, and page.
type SearchRequest struct {
	Criteria            model.SearchCriteria
	IncludeConfidential bool
	OnlyLatest          bool
	Sort                []repository.SortField
	Page                PageRequest
}

// SearchService executes criteria queries over a tenant's revisions.
type SearchService interface {
	Search(ctx context.Context, tenant string, req SearchRequest) (*RevisionPage, error)
}

type searchService struct {
	revisions repository.RevisionRepository
}

// NewSearchService constructs a new SearchService.
func NewSearchService(revisions repository.RevisionRepository) SearchService {
	return &searchService{revisions: revisions}
}

func (s *searchService) Search(ctx context.Context, tenant string, req SearchRequest) (*RevisionPage, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, invalidf("tenant", "must not be blank")
	}
	if err := validateCriteria(req.Criteria); err != nil {
		return nil, err
	}
	for _, f := range req.Sort {
		if !repository.SortableFields[f.Field] {
			return nil, invalidf("sort", "unknown field %q", f.Field)
		}
	}

	page := req.Page.normalize()
	res, err := s.revisions.Search(ctx, tenant, repository.SearchQuery{
		Criteria:   req.Criteria,
		Scope:      model.ScopeFor(req.IncludeConfidential),
		OnlyLatest: req.OnlyLatest,
		Sort:       req.Sort,
		Page:       page.query(),
	})
	if err != nil {
		return nil, err
	}
	return newRevisionPage(res, page), nil
}

func validateCriteria(c model.SearchCriteria) error {
	for _, t := range c.DocumentTypes {
		if strings.TrimSpace(t) == "" {
			return invalidf("document_types", "entry must not be blank")
		}
	}
	for _, p := range c.Metadata {
		if p.IsEmpty() {
			return invalidf("metadata", "predicate needs matches_any or matches_all")
		}
		for _, v := range p.MatchesAny {
			if strings.TrimSpace(v) == "" {
				return invalidf("metadata", "matches_any value must not be blank")
			}
		}
		for _, v := range p.MatchesAll {
			if strings.TrimSpace(v) == "" {
				return invalidf("metadata", "matches_all value must not be blank")
			}
		}
	}
	return nil
}
