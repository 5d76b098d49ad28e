package platform

import (
    "context"
    "encoding/json"
    "fmt"
    "math"
    "net/http"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// HumanitixClient fetches orders from the Humanitix public API.  The
// API authenticates with an x-api-key header and pages orders under
// /v1/events/{eventId}/orders.  Amounts arrive as decimal dollars and
// are converted to minor units here, at the boundary.
type HumanitixClient struct {
    baseURL string
    apiKey  string
    http    *http.Client
}

// NewHumanitixClient builds a client for the given base URL and API
// key.  An empty baseURL selects the production endpoint.
func NewHumanitixClient(baseURL, apiKey string) *HumanitixClient {
    if baseURL == "" {
        baseURL = "https://api.humanitix.com"
    }
    return &HumanitixClient{
        baseURL: baseURL,
        apiKey:  apiKey,
        http:    &http.Client{},
    }
}

// humanitixOrdersPage mirrors one page of the orders listing.
type humanitixOrdersPage struct {
    Total    int              `json:"total"`
    Page     int              `json:"page"`
    PageSize int              `json:"pageSize"`
    Orders   []humanitixOrder `json:"orders"`
}

type humanitixOrder struct {
    ID           string    `json:"_id"`
    Status       string    `json:"status"`
    TotalTickets uint32    `json:"totalTickets"`
    Total        float64   `json:"total"`
    Currency     string    `json:"currency"`
    CreatedAt    time.Time `json:"createdAt"`
}

// FetchSales pages through every order for the event and normalizes
// completed orders into a snapshot.  Cancelled and refunded orders are
// skipped: they are not sales the local store should hold either.
func (c *HumanitixClient) FetchSales(ctx context.Context, eventID string, p model.Platform) (*model.PlatformSaleSnapshot, error) {
    snap := &model.PlatformSaleSnapshot{
        EventID:   eventID,
        Platform:  p,
        FetchedAt: time.Now().UTC(),
    }
    for page := 1; ; page++ {
        url := fmt.Sprintf("%s/v1/events/%s/orders?page=%d", c.baseURL, eventID, page)
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
        if err != nil {
            return nil, err
        }
        req.Header.Set("x-api-key", c.apiKey)
        req.Header.Set("Accept", "application/json")

        resp, err := c.http.Do(req)
        if err != nil {
            // Context deadline errors pass through so the engine can
            // classify the run as a fetch timeout.
            if ctx.Err() != nil {
                return nil, ctx.Err()
            }
            return nil, fmt.Errorf("%w: humanitix: %v", ErrPlatformUnavailable, err)
        }
        body, err := decodeHumanitixPage(resp)
        if err != nil {
            return nil, err
        }
        for _, o := range body.Orders {
            if o.Status == "cancelled" || o.Status == "refunded" {
                continue
            }
            snap.Sales = append(snap.Sales, model.PlatformSale{
                ExternalSaleID: o.ID,
                Quantity:       o.TotalTickets,
                AmountCents:    dollarsToCents(o.Total),
                Currency:       o.Currency,
                PurchasedAt:    o.CreatedAt,
            })
        }
        if len(body.Orders) == 0 || body.PageSize <= 0 || page*body.PageSize >= body.Total {
            break
        }
    }
    return snap, nil
}

func decodeHumanitixPage(resp *http.Response) (*humanitixOrdersPage, error) {
    defer resp.Body.Close()
    switch {
    case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
        return nil, fmt.Errorf("%w: humanitix returned %d", ErrAuth, resp.StatusCode)
    case resp.StatusCode == http.StatusTooManyRequests:
        return nil, fmt.Errorf("%w: humanitix returned 429", ErrRateLimited)
    case resp.StatusCode >= 500:
        return nil, fmt.Errorf("%w: humanitix returned %d", ErrPlatformUnavailable, resp.StatusCode)
    case resp.StatusCode != http.StatusOK:
        return nil, fmt.Errorf("humanitix: unexpected status %d", resp.StatusCode)
    }
    var page humanitixOrdersPage
    if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
        return nil, fmt.Errorf("humanitix: decode orders page: %w", err)
    }
    return &page, nil
}

// dollarsToCents converts a decimal dollar amount to minor units,
// rounding half away from zero to avoid float drift on .5 boundaries.
func dollarsToCents(d float64) int64 {
    return int64(math.Round(d * 100))
}
