package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
    "github.com/standupsydney/ticket-reconciliation/internal/platform"
    "github.com/standupsydney/ticket-reconciliation/internal/repository"
    "github.com/standupsydney/ticket-reconciliation/internal/service"
)

// ReconciliationHandler exposes the reconciliation engine over HTTP.
// All methods assume JWT authentication has already run; mutating
// endpoints additionally sit behind the operator role middleware.  The
// caller identity extracted from the token is what gets recorded as
// resolved_by / created_by.
type ReconciliationHandler struct {
    Engine *service.Reconciler
}

// NewReconciliationHandler constructs the handler.  The engine must be
// non-nil.
func NewReconciliationHandler(engine *service.Reconciler) *ReconciliationHandler {
    if engine == nil {
        panic("nil engine passed to NewReconciliationHandler")
    }
    return &ReconciliationHandler{Engine: engine}
}

// callerID extracts the authenticated caller from context.  JWTAuth
// stores the raw claim, which for our tokens is the subject string.
func callerID(c echo.Context) string {
    if v, ok := c.Get("user_id").(string); ok && v != "" {
        return v
    }
    return ""
}

// Reconcile handles POST /v1/events/:id/reconcile.  An optional
// ?platform= query scopes the run to a single platform; otherwise every
// platform with recorded sales is covered.  Returns 202-style semantics
// are deliberately not used: the run is cheap enough to execute inline
// and the full result is returned in the response.
func (h *ReconciliationHandler) Reconcile(c echo.Context) error {
    eventID := c.Param("id")
    if eventID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    caller := callerID(c)
    if caller == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    var scope *model.Platform
    if raw := c.QueryParam("platform"); raw != "" {
        p, err := model.ParsePlatform(raw)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        scope = &p
    }

    res, err := h.Engine.ReconcileEvent(c.Request().Context(), eventID, scope, caller)
    if err != nil && res == nil {
        return writeError(c, err)
    }
    if err != nil {
        // Partial failure: the run record carries the error message and
        // any discrepancies from the platforms that did respond.
        return c.JSON(http.StatusBadGateway, echo.Map{
            "error":     err.Error(),
            "retryable": platform.Retryable(err),
            "result":    res,
        })
    }
    return c.JSON(http.StatusOK, res)
}

// Stats handles GET /v1/events/:id/reconciliation/stats.
func (h *ReconciliationHandler) Stats(c echo.Context) error {
    stats, err := h.Engine.Stats(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, stats)
}

// History handles GET /v1/events/:id/reconciliation/runs.  An optional
// ?limit= caps the number of runs returned (default 50).
func (h *ReconciliationHandler) History(c echo.Context) error {
    limit := 0
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        limit = n
    }
    runs, err := h.Engine.History(c.Request().Context(), c.Param("id"), limit)
    if err != nil {
        return writeError(c, err)
    }
    if runs == nil {
        runs = []model.ReconciliationRun{}
    }
    return c.JSON(http.StatusOK, echo.Map{"runs": runs})
}

// Discrepancies handles GET /v1/events/:id/discrepancies, listing the
// event's unresolved discrepancies most urgent first.
func (h *ReconciliationHandler) Discrepancies(c echo.Context) error {
    list, err := h.Engine.UnresolvedDiscrepancies(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    if list == nil {
        list = []model.Discrepancy{}
    }
    return c.JSON(http.StatusOK, echo.Map{"discrepancies": list})
}

// Resolve handles POST /v1/discrepancies/:id/resolve.  The body must
// carry a terminal resolution and non-empty notes; resolving an
// already-resolved discrepancy yields 409.
func (h *ReconciliationHandler) Resolve(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid discrepancy id"})
    }
    caller := callerID(c)
    if caller == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Resolution string `json:"resolution"`
        Notes      string `json:"notes"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    d, err := h.Engine.ResolveDiscrepancy(c.Request().Context(), id, body.Resolution, body.Notes, caller)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, d)
}

// writeError maps engine and repository errors onto HTTP statuses.
func writeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrDiscrepancyNotFound),
        errors.Is(err, repository.ErrRunNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrConflict),
        errors.Is(err, repository.ErrSaleNotFound):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, platform.ErrAuth):
        return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error(), "retryable": false})
    case errors.Is(err, platform.ErrPlatformUnavailable),
        errors.Is(err, platform.ErrRateLimited),
        errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error(), "retryable": true})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
