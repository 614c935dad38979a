package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Limit: DefaultLimit}},
		{"?limit=5&offset=10", Params{Limit: 5, Offset: 10}},
		{"?limit=1000", Params{Limit: MaxLimit}},
		{"?limit=-3&offset=-1", Params{Limit: DefaultLimit}},
		{"?limit=abc", Params{Limit: DefaultLimit}},
	}
	e := echo.New()
	for _, tt := range tests {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), httptest.NewRecorder())
		assert.Equal(t, tt.want, FromContext(c), tt.query)
	}
}

func TestWindow(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{2, 3}, Window(items, Params{Limit: 2, Offset: 1}))
	assert.Equal(t, []int{4, 5}, Window(items, Params{Limit: 10, Offset: 3}))
	assert.Equal(t, []int{}, Window(items, Params{Limit: 2, Offset: 9}))
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a"}, 25, Params{Limit: 20, Offset: 0})
	assert.True(t, r.HasMore)
	r = NewResponse([]string{"a"}, 25, Params{Limit: 20, Offset: 20})
	assert.False(t, r.HasMore)
}
