package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{}            `json:"data"`
	Pagination PaginationMeta         `json:"pagination"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
}

// PaginationMeta holds pagination metadata
type PaginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginationParams holds pagination parameters from request
type PaginationParams struct {
	Page    int
	PerPage int
	Offset  int
}

const (
	defaultPerPage = 50
	maxPerPage     = 100
	// maxPage keeps the offset far from int overflow
	maxPage = 1_000_000
)

// ParsePaginationParams extracts page and per_page from the query string.
// Invalid values fall back to the defaults.
func ParsePaginationParams(c echo.Context) PaginationParams {
	params := PaginationParams{Page: 1, PerPage: defaultPerPage}

	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		params.Page = min(p, maxPage)
	}
	if pp, err := strconv.Atoi(c.QueryParam("per_page")); err == nil && pp > 0 && pp <= maxPerPage {
		params.PerPage = pp
	}

	params.Offset = (params.Page - 1) * params.PerPage
	return params
}

// Paginate returns the requested page of items, never nil, with its metadata
func Paginate[T any](items []T, params PaginationParams) ([]T, PaginationMeta) {
	if params.PerPage <= 0 {
		params.PerPage = defaultPerPage
	}

	total := len(items)
	meta := PaginationMeta{
		Page:       params.Page,
		PerPage:    params.PerPage,
		Total:      total,
		TotalPages: (total + params.PerPage - 1) / params.PerPage,
	}

	if params.Offset < 0 || params.Offset >= total {
		return []T{}, meta
	}
	return items[params.Offset:params.Offset+min(params.PerPage, total-params.Offset)], meta
}

// SuccessPaginated returns a paginated success response
func SuccessPaginated(c echo.Context, data interface{}, pagination PaginationMeta, filters map[string]interface{}) error {
	return c.JSON(http.StatusOK, &PaginatedResponse{
		Data:       data,
		Pagination: pagination,
		Filters:    filters,
	})
}

// SuccessCreated returns a 201 Created response
func SuccessCreated(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

// SuccessOK returns a 200 OK response
func SuccessOK(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// SuccessNoContent returns a 204 No Content response
func SuccessNoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
