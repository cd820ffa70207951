// Package dto defines data transfer objects for the Alpha Vantage API responses.
package dto

// GlobalQuoteResponse represents the JSON response from function=GLOBAL_QUOTE.
// Quota and error conditions come back with HTTP 200 and one of the message
// fields set instead of the quote.
type GlobalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	Note         string            `json:"Note,omitempty"`
	Information  string            `json:"Information,omitempty"`
	ErrorMessage string            `json:"Error Message,omitempty"`
}
