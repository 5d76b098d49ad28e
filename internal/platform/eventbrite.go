package platform

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "time"

    "github.com/standupsydney/ticket-reconciliation/internal/model"
)

// EventbriteClient fetches orders from the Eventbrite v3 API.  The API
// authenticates with a Bearer token and pages with a continuation
// cursor.  Gross amounts already arrive in minor units.  Attendees are
// expanded so ticket quantity can be derived from the order itself.
type EventbriteClient struct {
    baseURL string
    token   string
    http    *http.Client
}

// NewEventbriteClient builds a client for the given base URL and OAuth
// token.  An empty baseURL selects the production endpoint.
func NewEventbriteClient(baseURL, token string) *EventbriteClient {
    if baseURL == "" {
        baseURL = "https://www.eventbriteapi.com"
    }
    return &EventbriteClient{
        baseURL: baseURL,
        token:   token,
        http:    &http.Client{},
    }
}

type eventbriteOrdersPage struct {
    Pagination struct {
        HasMoreItems bool   `json:"has_more_items"`
        Continuation string `json:"continuation"`
    } `json:"pagination"`
    Orders []eventbriteOrder `json:"orders"`
}

type eventbriteOrder struct {
    ID      string    `json:"id"`
    Status  string    `json:"status"`
    Created time.Time `json:"created"`
    Costs   struct {
        Gross struct {
            Value    int64  `json:"value"`
            Currency string `json:"currency"`
        } `json:"gross"`
    } `json:"costs"`
    Attendees []struct {
        ID string `json:"id"`
    } `json:"attendees"`
}

// FetchSales walks the continuation-cursor pagination and normalizes
// placed orders into a snapshot.  Refunded and cancelled orders are
// skipped.
func (c *EventbriteClient) FetchSales(ctx context.Context, eventID string, p model.Platform) (*model.PlatformSaleSnapshot, error) {
    snap := &model.PlatformSaleSnapshot{
        EventID:   eventID,
        Platform:  p,
        FetchedAt: time.Now().UTC(),
    }
    continuation := ""
    for {
        u := fmt.Sprintf("%s/v3/events/%s/orders/?expand=attendees", c.baseURL, eventID)
        if continuation != "" {
            u += "&continuation=" + url.QueryEscape(continuation)
        }
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil {
            return nil, err
        }
        req.Header.Set("Authorization", "Bearer "+c.token)
        req.Header.Set("Accept", "application/json")

        resp, err := c.http.Do(req)
        if err != nil {
            if ctx.Err() != nil {
                return nil, ctx.Err()
            }
            return nil, fmt.Errorf("%w: eventbrite: %v", ErrPlatformUnavailable, err)
        }
        page, err := decodeEventbritePage(resp)
        if err != nil {
            return nil, err
        }
        for _, o := range page.Orders {
            if o.Status == "refunded" || o.Status == "cancelled" || o.Status == "deleted" {
                continue
            }
            qty := uint32(len(o.Attendees))
            if qty == 0 {
                qty = 1
            }
            snap.Sales = append(snap.Sales, model.PlatformSale{
                ExternalSaleID: o.ID,
                Quantity:       qty,
                AmountCents:    o.Costs.Gross.Value,
                Currency:       o.Costs.Gross.Currency,
                PurchasedAt:    o.Created,
            })
        }
        if !page.Pagination.HasMoreItems || page.Pagination.Continuation == "" {
            break
        }
        continuation = page.Pagination.Continuation
    }
    return snap, nil
}

func decodeEventbritePage(resp *http.Response) (*eventbriteOrdersPage, error) {
    defer resp.Body.Close()
    switch {
    case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
        return nil, fmt.Errorf("%w: eventbrite returned %d", ErrAuth, resp.StatusCode)
    case resp.StatusCode == http.StatusTooManyRequests:
        return nil, fmt.Errorf("%w: eventbrite returned 429", ErrRateLimited)
    case resp.StatusCode >= 500:
        return nil, fmt.Errorf("%w: eventbrite returned %d", ErrPlatformUnavailable, resp.StatusCode)
    case resp.StatusCode != http.StatusOK:
        return nil, fmt.Errorf("eventbrite: unexpected status %d", resp.StatusCode)
    }
    var page eventbriteOrdersPage
    if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
        return nil, fmt.Errorf("eventbrite: decode orders page: %w", err)
    }
    return &page, nil
}
