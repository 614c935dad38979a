package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole([]string{RoleNurse}, RoleNurse, RolePhysician))
	assert.True(t, HasRole([]string{RoleAdmin}, RoleCashier))
	assert.False(t, HasRole([]string{RoleCashier}, RoleNurse))
	assert.False(t, HasRole(nil, RoleNurse))
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"matching role", []string{RolePharmacist}, http.StatusOK},
		{"admin override", []string{RoleAdmin}, http.StatusOK},
		{"wrong role", []string{RoleHousekeeping}, http.StatusForbidden},
		{"anonymous", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, tt.roles))
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := RequireRole(RolePharmacist)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)

			if tt.want == http.StatusOK {
				assert.NoError(t, err)
				return
			}
			he, ok := err.(*echo.HTTPError)
			if assert.True(t, ok) {
				assert.Equal(t, tt.want, he.Code)
			}
		})
	}
}

func TestIsPublicPath(t *testing.T) {
	assert.True(t, IsPublicPath("/health"))
	assert.True(t, IsPublicPath("/metrics"))
	assert.False(t, IsPublicPath("/api/v1/visits"))
}
