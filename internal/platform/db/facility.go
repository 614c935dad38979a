package db

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	FacilityIDKey contextKey = "facility_id"
	DBConnKey     contextKey = "db_conn"
	DBTxKey       contextKey = "db_tx"
)

// FacilityHeader selects the hospital facility (and therefore the schema) a
// request operates on.
const FacilityHeader = "X-Facility-ID"

var facilityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaFor returns the schema holding a facility's tables.
func SchemaFor(facilityID string) string {
	return "facility_" + facilityID
}

// FacilityMiddleware pins a pooled connection to the request and points its
// search_path at the facility schema. Repositories pick the connection up via
// ConnFromContext.
func FacilityMiddleware(pool *pgxpool.Pool, defaultFacility string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			facilityID := extractFacilityID(c, defaultFacility)

			if !facilityIDPattern.MatchString(facilityID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid facility identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaFor(facilityID)))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "facility resolution failed")
			}

			ctx = context.WithValue(ctx, FacilityIDKey, facilityID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("facility_id", facilityID)

			return next(c)
		}
	}
}

func extractFacilityID(c echo.Context, defaultFacility string) string {
	// JWT claim wins over caller supplied values.
	if fid, ok := c.Get("jwt_facility_id").(string); ok && fid != "" {
		return fid
	}
	if fid := c.Request().Header.Get(FacilityHeader); fid != "" {
		return fid
	}
	if fid := c.QueryParam("facility_id"); fid != "" {
		return fid
	}
	return defaultFacility
}

// ConnFromContext retrieves the facility-scoped connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// FacilityFromContext retrieves the facility ID from context.
func FacilityFromContext(ctx context.Context) string {
	fid, _ := ctx.Value(FacilityIDKey).(string)
	return fid
}

// CreateFacilitySchema creates the schema for a facility and, when
// migrations is non-nil, brings it up to date.
func CreateFacilitySchema(ctx context.Context, pool *pgxpool.Pool, facilityID string, migrations fs.FS) error {
	if !facilityIDPattern.MatchString(facilityID) {
		return fmt.Errorf("invalid facility identifier: %s", facilityID)
	}

	schema := SchemaFor(facilityID)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrations != nil {
		migrator := NewMigrator(pool, migrations)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
