package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"diarium/internal/model"
	"diarium/internal/repository"
	repomocks "diarium/internal/repository/mocks"
)

func TestSearchService_Search(t *testing.T) {
	t.Run("dispatches criteria, scope, and normalized page", func(t *testing.T) {
		repo := new(repomocks.MockRevisionRepository)
		svc := NewSearchService(repo)

		criteria := model.SearchCriteria{Text: "permit*", DocumentTypes: []string{"permit"}}
		repo.On("Search", mock.Anything, "2281", repository.SearchQuery{
			Criteria:   criteria,
			Scope:      model.ScopeFor(true),
			OnlyLatest: true,
			Sort:       []repository.SortField{{Field: "created_at", Desc: true}},
			Page:       repository.PageQuery{Limit: 10, Offset: 10},
		}).Return(&repository.PageResult[model.Revision]{
			Items: []model.Revision{{RegistrationNumber: "2024-2281-1"}},
			Total: 25,
		}, nil)

		page, err := svc.Search(context.Background(), "2281", SearchRequest{
			Criteria:            criteria,
			IncludeConfidential: true,
			OnlyLatest:          true,
			Sort:                []repository.SortField{{Field: "created_at", Desc: true}},
			Page:                PageRequest{Page: 2, Size: 10},
		})
		require.NoError(t, err)
		assert.Equal(t, 25, page.TotalElements)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Items, 1)
		repo.AssertExpectations(t)
	})

	t.Run("defaults to public-only scope", func(t *testing.T) {
		repo := new(repomocks.MockRevisionRepository)
		svc := NewSearchService(repo)

		repo.On("Search", mock.Anything, "2281", mock.MatchedBy(func(q repository.SearchQuery) bool {
			return !q.Scope.IncludesConfidential()
		})).Return(&repository.PageResult[model.Revision]{Items: []model.Revision{}}, nil)

		_, err := svc.Search(context.Background(), "2281", SearchRequest{})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("blank tenant", func(t *testing.T) {
		svc := NewSearchService(new(repomocks.MockRevisionRepository))
		_, err := svc.Search(context.Background(), " ", SearchRequest{})
		assert.True(t, IsValidation(err))
	})

	t.Run("rejects malformed criteria", func(t *testing.T) {
		cases := []struct {
			name     string
			criteria model.SearchCriteria
		}{
			{"blank document type entry", model.SearchCriteria{DocumentTypes: []string{""}}},
			{"empty metadata predicate", model.SearchCriteria{Metadata: []model.MetadataPredicate{{Key: "k"}}}},
			{"blank matches_any value", model.SearchCriteria{Metadata: []model.MetadataPredicate{{MatchesAny: []string{" "}}}}},
			{"blank matches_all value", model.SearchCriteria{Metadata: []model.MetadataPredicate{{MatchesAll: []string{""}}}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				svc := NewSearchService(new(repomocks.MockRevisionRepository))
				_, err := svc.Search(context.Background(), "2281", SearchRequest{Criteria: tc.criteria})
				assert.True(t, IsValidation(err), "got %v", err)
			})
		}
	})

	t.Run("rejects unknown sort fields", func(t *testing.T) {
		svc := NewSearchService(new(repomocks.MockRevisionRepository))
		_, err := svc.Search(context.Background(), "2281", SearchRequest{
			Sort: []repository.SortField{{Field: "tenant; DROP TABLE revisions"}},
		})
		assert.True(t, IsValidation(err))
	})

	t.Run("repository errors pass through", func(t *testing.T) {
		repo := new(repomocks.MockRevisionRepository)
		svc := NewSearchService(repo)
		repo.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, sql.ErrConnDone)

		_, err := svc.Search(context.Background(), "2281", SearchRequest{})
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})
}
