package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
    "github.com/standupsydney/ticket-reconciliation/internal/repository"
    "github.com/standupsydney/ticket-reconciliation/internal/service"
)

// Store fakes cover only the slices these routes exercise; routes that
// would hit the sale store or a platform connector are tested at the
// service layer.

type stubDiscrepancies struct {
    byID map[uint64]*model.Discrepancy
}

func (s *stubDiscrepancies) Insert(context.Context, *model.Discrepancy) error { return nil }

func (s *stubDiscrepancies) GetByID(_ context.Context, id uint64) (*model.Discrepancy, error) {
    if d, ok := s.byID[id]; ok {
        return d, nil
    }
    return nil, repository.ErrDiscrepancyNotFound
}

func (s *stubDiscrepancies) ListUnresolved(context.Context, string) ([]model.Discrepancy, error) {
    return nil, nil
}

func (s *stubDiscrepancies) Resolve(_ context.Context, id uint64, state model.ResolutionState, notes, resolvedBy string, at time.Time) (*model.Discrepancy, error) {
    d, ok := s.byID[id]
    if !ok {
        return nil, repository.ErrDiscrepancyNotFound
    }
    if d.Resolution != model.ResolutionUnresolved {
        return nil, repository.ErrConflict
    }
    d.Resolution = state
    d.ResolutionNotes = &notes
    d.ResolvedBy = &resolvedBy
    d.ResolvedAt = &at
    return d, nil
}

func (s *stubDiscrepancies) StatsByEvent(context.Context, string) (*repository.DiscrepancyStats, error) {
    return &repository.DiscrepancyStats{
        Total:      3,
        Unresolved: 1,
        BySeverity: map[model.Severity]int{model.SeverityCritical: 1},
    }, nil
}

type stubRuns struct{}

func (stubRuns) Create(context.Context, *model.ReconciliationRun) error { return nil }
func (stubRuns) Finish(context.Context, *model.ReconciliationRun) error { return nil }
func (stubRuns) ListByEvent(context.Context, string, int) ([]model.ReconciliationRun, error) {
    return nil, nil
}
func (stubRuns) LastRun(context.Context, string) (*model.ReconciliationRun, error) {
    return nil, nil
}
func (stubRuns) HasActiveRun(context.Context, string) (bool, error) { return false, nil }

type stubAdjustments struct{ applied []model.ManualAdjustment }

func (s *stubAdjustments) Apply(_ context.Context, adj *model.ManualAdjustment) error {
    adj.ID = uint64(len(s.applied) + 1)
    s.applied = append(s.applied, *adj)
    return nil
}
func (s *stubAdjustments) ListByEvent(context.Context, string) ([]model.ManualAdjustment, error) {
    return nil, nil
}

func newTestHandler(d *stubDiscrepancies) *ReconciliationHandler {
    engine := service.NewReconciler(nil, d, stubRuns{}, &stubAdjustments{}, nil, nil, service.DefaultPolicy())
    return NewReconciliationHandler(engine)
}

func doRequest(t *testing.T, h echo.HandlerFunc, method, target, body string, params map[string]string, caller string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    if body != "" {
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    for k, v := range params {
        c.SetParamNames(k)
        c.SetParamValues(v)
    }
    if caller != "" {
        c.Set("user_id", caller)
    }
    require.NoError(t, h(c))
    return rec
}

func TestResolveEndpoint(t *testing.T) {
    d := &stubDiscrepancies{byID: map[uint64]*model.Discrepancy{
        7: {ID: 7, EventID: "evt-1", Resolution: model.ResolutionUnresolved},
    }}
    h := newTestHandler(d)

    rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/7/resolve",
        `{"resolution":"ignored","notes":"known platform fee"}`,
        map[string]string{"id": "7"}, "op-1")
    assert.Equal(t, http.StatusOK, rec.Code)

    var got model.Discrepancy
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
    assert.Equal(t, model.ResolutionIgnored, got.Resolution)
    require.NotNil(t, got.ResolvedBy)
    assert.Equal(t, "op-1", *got.ResolvedBy)
}

func TestResolveEndpointConflict(t *testing.T) {
    notes := "done"
    d := &stubDiscrepancies{byID: map[uint64]*model.Discrepancy{
        7: {ID: 7, Resolution: model.ResolutionIgnored, ResolutionNotes: &notes},
    }}
    h := newTestHandler(d)

    rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/7/resolve",
        `{"resolution":"manual_review","notes":"second look"}`,
        map[string]string{"id": "7"}, "op-2")
    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResolveEndpointValidation(t *testing.T) {
    d := &stubDiscrepancies{byID: map[uint64]*model.Discrepancy{
        7: {ID: 7, Resolution: model.ResolutionUnresolved},
    }}
    h := newTestHandler(d)

    t.Run("unknown resolution", func(t *testing.T) {
        rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/7/resolve",
            `{"resolution":"unresolved","notes":"nope"}`,
            map[string]string{"id": "7"}, "op-1")
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })
    t.Run("missing notes", func(t *testing.T) {
        rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/7/resolve",
            `{"resolution":"ignored"}`,
            map[string]string{"id": "7"}, "op-1")
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })
    t.Run("bad id", func(t *testing.T) {
        rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/x/resolve",
            `{"resolution":"ignored","notes":"n"}`,
            map[string]string{"id": "x"}, "op-1")
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })
    t.Run("no caller identity", func(t *testing.T) {
        rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/7/resolve",
            `{"resolution":"ignored","notes":"n"}`,
            map[string]string{"id": "7"}, "")
        assert.Equal(t, http.StatusUnauthorized, rec.Code)
    })
}

func TestResolveEndpointNotFound(t *testing.T) {
    h := newTestHandler(&stubDiscrepancies{byID: map[uint64]*model.Discrepancy{}})
    rec := doRequest(t, h.Resolve, http.MethodPost, "/v1/discrepancies/99/resolve",
        `{"resolution":"ignored","notes":"n"}`,
        map[string]string{"id": "99"}, "op-1")
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
    h := newTestHandler(&stubDiscrepancies{})
    rec := doRequest(t, h.Stats, http.MethodGet, "/v1/events/evt-1/reconciliation/stats", "",
        map[string]string{"id": "evt-1"}, "op-1")
    assert.Equal(t, http.StatusOK, rec.Code)

    var got struct {
        Total      int            `json:"total_discrepancies"`
        Unresolved int            `json:"unresolved"`
        BySeverity map[string]int `json:"by_severity"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
    assert.Equal(t, 3, got.Total)
    assert.Equal(t, 1, got.Unresolved)
    assert.Equal(t, 1, got.BySeverity["critical"])
}

func TestDiscrepanciesEndpointEmptyList(t *testing.T) {
    h := newTestHandler(&stubDiscrepancies{})
    rec := doRequest(t, h.Discrepancies, http.MethodGet, "/v1/events/evt-1/discrepancies", "",
        map[string]string{"id": "evt-1"}, "op-1")
    assert.Equal(t, http.StatusOK, rec.Code)
    // Empty result must serialize as [], not null.
    assert.JSONEq(t, `{"discrepancies":[]}`, rec.Body.String())
}

func TestHistoryEndpointRejectsBadLimit(t *testing.T) {
    h := newTestHandler(&stubDiscrepancies{})
    rec := doRequest(t, h.History, http.MethodGet, "/v1/events/evt-1/reconciliation/runs?limit=zero", "",
        map[string]string{"id": "evt-1"}, "op-1")
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAdjustmentEndpoint(t *testing.T) {
    h := newTestHandler(&stubDiscrepancies{})

    t.Run("valid", func(t *testing.T) {
        rec := doRequest(t, h.CreateAdjustment, http.MethodPost, "/v1/events/evt-1/adjustments",
            `{"platform":"manual","type":"add_sale","reason":"door sale",
              "payload":{"external_sale_id":"door-1","quantity":2,"amount_cents":5000,"currency":"AUD"}}`,
            map[string]string{"id": "evt-1"}, "op-1")
        assert.Equal(t, http.StatusCreated, rec.Code)

        var got model.ManualAdjustment
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
        assert.NotZero(t, got.ID)
        assert.Equal(t, "op-1", got.CreatedBy)
    })
    t.Run("unknown type", func(t *testing.T) {
        rec := doRequest(t, h.CreateAdjustment, http.MethodPost, "/v1/events/evt-1/adjustments",
            `{"platform":"manual","type":"void","reason":"r","payload":{"external_sale_id":"x"}}`,
            map[string]string{"id": "evt-1"}, "op-1")
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })
    t.Run("missing reason", func(t *testing.T) {
        rec := doRequest(t, h.CreateAdjustment, http.MethodPost, "/v1/events/evt-1/adjustments",
            `{"platform":"manual","type":"add_sale","payload":{"external_sale_id":"x","quantity":1,"amount_cents":100,"currency":"AUD"}}`,
            map[string]string{"id": "evt-1"}, "op-1")
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })
}
