package run

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Ramsey-B/stem/pkg/context"
	"github.com/labstack/echo/v4"

	runrepo "github.com/Ramsey-B/fern/internal/repositories/run"
	"github.com/Ramsey-B/fern/pkg/linkage"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Register registers linkage run routes
func Register(g *echo.Group) {
	g.POST("", CreateRun)
	g.GET("", ListRuns)
	g.GET("/:id", GetRun)
	g.GET("/:id/matches", ListRunMatches)
}

// CreateRun executes a linkage request synchronously and returns the report.
// Large collections belong on the Kafka path; this endpoint serves inline
// payloads and ad hoc reruns.
func CreateRun(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	var req models.LinkageRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.TenantID == "" {
		req.TenantID = tenantID
	}
	if req.TenantID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	ctx, service, err := ectoinject.GetContext[*linkage.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := service.ExecuteRequest(ctx, req)
	if err != nil {
		if errors.Is(err, linkage.ErrInvalidConfiguration) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}

	if result.Duplicate {
		return c.JSON(http.StatusOK, result.Run)
	}
	return c.JSON(http.StatusCreated, result.Report)
}

// ListRuns lists recent linkage runs for the tenant
func ListRuns(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	ctx, repo, err := ectoinject.GetContext[*runrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	runs, err := repo.List(ctx, tenantID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, runs)
}

// GetRun gets a linkage run by ID
func GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*runrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	run, err := repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, run)
}

// ListRunMatches lists the persisted matches of a run
func ListRunMatches(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := context.GetTenantID(ctx)
	id := c.Param("id")

	limit := 500
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	ctx, repo, err := ectoinject.GetContext[*runrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	// 404 when the run itself is unknown
	if _, err := repo.Get(ctx, tenantID, id); err != nil {
		return err
	}

	matches, err := repo.ListMatches(ctx, tenantID, id, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, matches)
}
