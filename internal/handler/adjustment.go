package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// CreateAdjustment handles POST /v1/events/:id/adjustments.  The body
// carries the adjustment type, its payload and a mandatory reason; the
// engine validates and applies it atomically — either the adjustment
// record and the sale mutation both land, or neither does.
func (h *ReconciliationHandler) CreateAdjustment(c echo.Context) error {
    eventID := c.Param("id")
    if eventID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    caller := callerID(c)
    if caller == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }

    var body struct {
        Platform string                  `json:"platform"`
        Type     string                  `json:"type"`
        Payload  model.AdjustmentPayload `json:"payload"`
        Reason   string                  `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    p, err := model.ParsePlatform(body.Platform)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    atype, ok := model.ParseAdjustmentType(body.Type)
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown adjustment type"})
    }

    adj := &model.ManualAdjustment{
        EventID:   eventID,
        Platform:  p,
        Type:      atype,
        Payload:   body.Payload,
        Reason:    body.Reason,
        CreatedBy: caller,
    }
    created, err := h.Engine.CreateAdjustment(c.Request().Context(), adj)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, created)
}

// ListAdjustments handles GET /v1/events/:id/adjustments, returning the
// adjustment audit trail for the event, newest first.
func (h *ReconciliationHandler) ListAdjustments(c echo.Context) error {
    list, err := h.Engine.Adjustments(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, err)
    }
    if list == nil {
        list = []model.ManualAdjustment{}
    }
    return c.JSON(http.StatusOK, echo.Map{"adjustments": list})
}
