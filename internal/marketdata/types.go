// Package marketdata defines the wire-level data model and the MarketClient
// contract for talking to a single Finnhub-shaped market-data provider.
package marketdata

import (
	"strings"
	"time"
)

// SymbolID is a canonicalized ticker symbol: upper-cased, trimmed.
type SymbolID string

// NewSymbolID canonicalizes a raw string into a SymbolID.
func NewSymbolID(raw string) SymbolID {
	return SymbolID(strings.ToUpper(strings.TrimSpace(raw)))
}

func (s SymbolID) String() string { return string(s) }

// Valid reports whether the symbol looks like a plausible exchange ticker:
// non-empty, maximum length 10, and only letters/digits/dot/dash.
func (s SymbolID) Valid() bool {
	if len(s) == 0 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return false
		}
	}
	return true
}

// RawListing is a single entry from the provider's symbol-list endpoint.
// Treated as immutable once fetched.
type RawListing struct {
	Symbol        SymbolID `json:"symbol"`
	Description   string   `json:"description"`
	DisplaySymbol string   `json:"displaySymbol"`
	Currency      string   `json:"currency"`
	MIC           string   `json:"mic"`
	FIGI          string   `json:"figi"`
	Type          string   `json:"type"`
}

// Profile is the provider's company-profile response for one symbol. All
// fields may be absent: an empty JSON object is a valid response and
// decodes to the zero Profile. Treated as immutable.
type Profile struct {
	Country              string  `json:"country"`
	Currency             string  `json:"currency"`
	Exchange             string  `json:"exchange"`
	IPO                  string  `json:"ipo"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	Name                 string  `json:"name"`
	Phone                string  `json:"phone"`
	ShareOutstanding     float64 `json:"shareOutstanding"`
	Ticker               string  `json:"ticker"`
	WebURL               string  `json:"weburl"`
	Logo                 string  `json:"logo"`
	Industry             string  `json:"finnhubIndustry"`
}

// Stock is the enriched, cache-resident record for one symbol. All fields
// are nullable at the wire layer except Symbol and LastUpdated.
type Stock struct {
	Symbol               SymbolID  `json:"symbol"`
	Name                 string    `json:"name"`
	Exchange             string    `json:"exchange"`
	AssetType            string    `json:"assetType"`
	IPODate              string    `json:"ipoDate"`
	Country              string    `json:"country"`
	Currency             string    `json:"currency"`
	IPO                  string    `json:"ipo"`
	MarketCapitalization float64   `json:"marketCapitalization"`
	Phone                string    `json:"phone"`
	ShareOutstanding     float64   `json:"shareOutstanding"`
	Ticker               string    `json:"ticker"`
	WebURL               string    `json:"weburl"`
	Logo                 string    `json:"logo"`
	Industry             string    `json:"finnhubIndustry"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// MergeStock combines a listing and a profile into the cache-resident
// record. Currency falls back to the listing's when the profile omits it
// (illiquid/unknown symbols often return an empty profile).
func MergeStock(listing RawListing, profile Profile, lastUpdated time.Time) Stock {
	currency := profile.Currency
	if currency == "" {
		currency = listing.Currency
	}
	return Stock{
		Symbol:               listing.Symbol,
		Name:                 profile.Name,
		Exchange:             profile.Exchange,
		AssetType:            listing.Type,
		IPODate:              profile.IPO,
		Country:              profile.Country,
		Currency:             currency,
		IPO:                  profile.IPO,
		MarketCapitalization: profile.MarketCapitalization,
		Phone:                profile.Phone,
		ShareOutstanding:     profile.ShareOutstanding,
		Ticker:               profile.Ticker,
		WebURL:               profile.WebURL,
		Logo:                 profile.Logo,
		Industry:             profile.Industry,
		LastUpdated:          lastUpdated,
	}
}

// ClientErrorKind classifies a MarketClient failure so callers (chiefly the
// warm-up pipeline) can decide whether to retry.
type ClientErrorKind string

const (
	ErrKindRateLimited ClientErrorKind = "rate_limited"
	ErrKindNotFound    ClientErrorKind = "not_found"
	ErrKindUpstream5xx ClientErrorKind = "upstream_5xx"
	ErrKindTransport   ClientErrorKind = "transport"
	ErrKindDecode      ClientErrorKind = "decode"
)

// ClientError wraps a MarketClient failure with a classification and the
// underlying cause.
type ClientError struct {
	Kind     ClientErrorKind
	Endpoint string
	Symbol   SymbolID
	Err      error
}

func (e *ClientError) Error() string {
	if e.Symbol != "" {
		return "marketdata: " + string(e.Kind) + " on " + e.Endpoint + " for " + string(e.Symbol) + ": " + e.Err.Error()
	}
	return "marketdata: " + string(e.Kind) + " on " + e.Endpoint + ": " + e.Err.Error()
}

func (e *ClientError) Unwrap() error { return e.Err }

// Retryable reports whether the pipeline should retry the request that
// produced this error.
func (e *ClientError) Retryable() bool {
	switch e.Kind {
	case ErrKindRateLimited, ErrKindUpstream5xx, ErrKindTransport:
		return true
	default:
		return false
	}
}
