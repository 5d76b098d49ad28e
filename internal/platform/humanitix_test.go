package platform

import (
    "context"
    "fmt"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

func TestHumanitixFetchPaginates(t *testing.T) {
    // Two pages of two orders each; one cancelled order must be skipped.
    pages := map[string]string{
        "1": `{"total":4,"page":1,"pageSize":2,"orders":[
            {"_id":"ord-1","status":"complete","totalTickets":2,"total":55.00,"currency":"AUD","createdAt":"2026-08-01T10:00:00Z"},
            {"_id":"ord-2","status":"cancelled","totalTickets":1,"total":27.50,"currency":"AUD","createdAt":"2026-08-01T11:00:00Z"}]}`,
        "2": `{"total":4,"page":2,"pageSize":2,"orders":[
            {"_id":"ord-3","status":"complete","totalTickets":1,"total":27.50,"currency":"AUD","createdAt":"2026-08-01T12:00:00Z"},
            {"_id":"ord-4","status":"refunded","totalTickets":1,"total":27.50,"currency":"AUD","createdAt":"2026-08-01T13:00:00Z"}]}`,
    }
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
        assert.Equal(t, "/v1/events/evt-1/orders", r.URL.Path)
        body, ok := pages[r.URL.Query().Get("page")]
        require.True(t, ok, "unexpected page %q", r.URL.Query().Get("page"))
        w.Header().Set("Content-Type", "application/json")
        fmt.Fprint(w, body)
    }))
    defer srv.Close()

    c := NewHumanitixClient(srv.URL, "test-key")
    snap, err := c.FetchSales(context.Background(), "evt-1", model.PlatformHumanitix)
    require.NoError(t, err)

    require.Len(t, snap.Sales, 2)
    assert.Equal(t, "ord-1", snap.Sales[0].ExternalSaleID)
    assert.Equal(t, uint32(2), snap.Sales[0].Quantity)
    assert.Equal(t, int64(5500), snap.Sales[0].AmountCents)
    assert.Equal(t, "AUD", snap.Sales[0].Currency)
    assert.Equal(t, "ord-3", snap.Sales[1].ExternalSaleID)
    assert.Equal(t, int64(2750), snap.Sales[1].AmountCents)
}

func TestHumanitixErrorClassification(t *testing.T) {
    cases := []struct {
        status    int
        sentinel  error
        retryable bool
    }{
        {http.StatusUnauthorized, ErrAuth, false},
        {http.StatusForbidden, ErrAuth, false},
        {http.StatusTooManyRequests, ErrRateLimited, true},
        {http.StatusInternalServerError, ErrPlatformUnavailable, true},
        {http.StatusBadGateway, ErrPlatformUnavailable, true},
    }
    for _, tc := range cases {
        t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
            srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
                w.WriteHeader(tc.status)
            }))
            defer srv.Close()

            c := NewHumanitixClient(srv.URL, "test-key")
            _, err := c.FetchSales(context.Background(), "evt-1", model.PlatformHumanitix)
            require.Error(t, err)
            assert.ErrorIs(t, err, tc.sentinel)
            assert.Equal(t, tc.retryable, Retryable(err))
        })
    }
}

func TestHumanitixUnreachableIsRetryable(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
    srv.Close() // connection refused from here on

    c := NewHumanitixClient(srv.URL, "test-key")
    _, err := c.FetchSales(context.Background(), "evt-1", model.PlatformHumanitix)
    require.Error(t, err)
    assert.ErrorIs(t, err, ErrPlatformUnavailable)
    assert.True(t, Retryable(err))
}

func TestHumanitixContextCancellation(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        <-r.Context().Done()
    }))
    defer srv.Close()

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    c := NewHumanitixClient(srv.URL, "test-key")
    _, err := c.FetchSales(ctx, "evt-1", model.PlatformHumanitix)
    assert.ErrorIs(t, err, context.Canceled)
}

func TestDollarsToCents(t *testing.T) {
    cases := []struct {
        dollars float64
        cents   int64
    }{
        {0, 0},
        {27.50, 2750},
        {100.01, 10001},
        {33.33, 3333}, // float repr is 3332.999…; Round recovers it
        {-5.01, -501},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.cents, dollarsToCents(tc.dollars), "dollars=%v", tc.dollars)
    }
}

func TestRegistryDispatch(t *testing.T) {
    reg := NewRegistry()
    _, err := reg.FetchSales(context.Background(), "evt-1", model.PlatformHumanitix)
    assert.Error(t, err, "unregistered platform must fail")

    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
        fmt.Fprint(w, `{"total":0,"page":1,"pageSize":100,"orders":[]}`)
    }))
    defer srv.Close()

    reg.Register(model.PlatformHumanitix, NewHumanitixClient(srv.URL, "k"))
    snap, err := reg.FetchSales(context.Background(), "evt-1", model.PlatformHumanitix)
    require.NoError(t, err)
    assert.Equal(t, model.PlatformHumanitix, snap.Platform)
    assert.Empty(t, snap.Sales)
}
