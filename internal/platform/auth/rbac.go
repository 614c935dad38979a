package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff roles. Admin passes every role check.
const (
	RoleAdmin        = "admin"
	RoleFrontDesk    = "frontdesk"
	RoleNurse        = "nurse"
	RolePhysician    = "physician"
	RoleLabTech      = "labtech"
	RolePharmacist   = "pharmacist"
	RoleCashier      = "cashier"
	RoleHousekeeping = "housekeeping"
)

// HasRole reports whether roles grants any of want.
func HasRole(roles []string, want ...string) bool {
	for _, has := range roles {
		if has == RoleAdmin {
			return true
		}
		for _, w := range want {
			if has == w {
				return true
			}
		}
	}
	return false
}

// RequireRole rejects callers holding none of roles with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
