package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/tsanders-rh/sentinel/internal/api"
)

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		query string
		want  api.PaginationParams
	}{
		{"", api.PaginationParams{Page: 1, PerPage: 50, Offset: 0}},
		{"?page=3&per_page=10", api.PaginationParams{Page: 3, PerPage: 10, Offset: 20}},
		{"?page=0&per_page=500", api.PaginationParams{Page: 1, PerPage: 50, Offset: 0}},
		{"?page=abc", api.PaginationParams{Page: 1, PerPage: 50, Offset: 0}},
		{"?page=9223372036854775807&per_page=100", api.PaginationParams{Page: 1_000_000, PerPage: 100, Offset: 99_999_900}},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), httptest.NewRecorder())
			assert.Equal(t, tt.want, api.ParsePaginationParams(c))
		})
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, meta := api.Paginate(items, api.PaginationParams{Page: 2, PerPage: 2, Offset: 2})
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, api.PaginationMeta{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, meta)

	page, _ = api.Paginate(items, api.PaginationParams{Page: 3, PerPage: 2, Offset: 4})
	assert.Equal(t, []int{5}, page)

	page, meta = api.Paginate(items, api.PaginationParams{Page: 9, PerPage: 2, Offset: 16})
	assert.Empty(t, page)
	assert.NotNil(t, page)
	assert.Equal(t, 3, meta.TotalPages)

	page, _ = api.Paginate(items, api.PaginationParams{Page: 1, PerPage: 2, Offset: -4})
	assert.Empty(t, page)
}
