package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryFiltersFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/api/v1/nodes?category=ADR&category=Doc&limit=10&offset=5&orderBy=title&order=asc&prop.status=accepted", nil)

	filters := queryFiltersFromRequest(r)
	assert.Equal(t, []string{"ADR", "Doc"}, filters.Categories)
	assert.Equal(t, 10, filters.Limit)
	assert.Equal(t, 5, filters.Offset)
	assert.Equal(t, "title", filters.OrderBy)
	assert.True(t, filters.Ascending)
	assert.Equal(t, "accepted", filters.Equals["status"])
}

func TestQueryFiltersFromRequestDefaultsDescending(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/nodes", nil)
	assert.False(t, queryFiltersFromRequest(r).Ascending)
}
