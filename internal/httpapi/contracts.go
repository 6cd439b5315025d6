package httpapi

import (
	"time"

	"github.com/symbolcache/symbolcache/internal/marketdata"
	"github.com/symbolcache/symbolcache/internal/query"
)

// StockResponse is the payload for GET /stocks/{symbol}: either the stored
// record or a minimum-viable synthesized one for a symbol no cell has been
// populated for yet.
type StockResponse struct {
	Symbol               string    `json:"symbol"`
	Name                 string    `json:"name,omitempty"`
	Exchange             string    `json:"exchange,omitempty"`
	AssetType            string    `json:"assetType,omitempty"`
	IPODate              string    `json:"ipoDate,omitempty"`
	Country              string    `json:"country,omitempty"`
	Currency             string    `json:"currency,omitempty"`
	IPO                  string    `json:"ipo,omitempty"`
	MarketCapitalization float64   `json:"marketCapitalization,omitempty"`
	Phone                string    `json:"phone,omitempty"`
	ShareOutstanding     float64   `json:"shareOutstanding,omitempty"`
	Ticker               string    `json:"ticker,omitempty"`
	WebURL               string    `json:"weburl,omitempty"`
	Logo                 string    `json:"logo,omitempty"`
	Industry             string    `json:"finnhubIndustry,omitempty"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

func stockResponseFromStock(s marketdata.Stock) StockResponse {
	return StockResponse{
		Symbol:               string(s.Symbol),
		Name:                 s.Name,
		Exchange:             s.Exchange,
		AssetType:            s.AssetType,
		IPODate:              s.IPODate,
		Country:              s.Country,
		Currency:             s.Currency,
		IPO:                  s.IPO,
		MarketCapitalization: s.MarketCapitalization,
		Phone:                s.Phone,
		ShareOutstanding:     s.ShareOutstanding,
		Ticker:               s.Ticker,
		WebURL:               s.WebURL,
		Logo:                 s.Logo,
		Industry:             s.Industry,
		LastUpdated:          s.LastUpdated,
	}
}

// BulkStocksResponse is the payload for GET /stocks.
type BulkStocksResponse struct {
	Timestamp time.Time       `json:"timestamp"`
	Count     int             `json:"count"`
	Partial   bool            `json:"partial"`
	Stocks    []StockResponse `json:"stocks"`
}

// HealthResponse mirrors query.ReadinessReport on the wire.
type HealthResponse struct {
	Status   string               `json:"status"`
	Warmup   HealthWarmup         `json:"warmup"`
	Percent  int64                `json:"percent"`
	Provider query.ProviderHealth `json:"provider"`
}

// HealthWarmup is the JSON shape of warm-up progress within /health.
type HealthWarmup struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
	Processed int64 `json:"processed"`
}

// ErrorResponse is the standard error envelope for every non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
