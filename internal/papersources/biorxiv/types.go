// Package biorxiv provides a client for the bioRxiv preprint API.
//
// bioRxiv has no search endpoint: its details API pages through every
// preprint posted in a date interval, 100 records per cursor step. The
// client therefore fetches whole days and matches topic and author terms
// client-side. Two access patterns are supported: a shallow sweep (cursor 0
// for each day of a recent window, in parallel) used on the hot request
// path, and a deep sweep (per-day totals first, then every remaining
// cursor) used by background jobs.
//
// API Documentation: https://api.biorxiv.org/
package biorxiv

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexInt decodes JSON values that the bioRxiv API returns inconsistently
// as either a number or a quoted string ("total": 120 vs "total": "120").
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// Int returns the value as a plain int.
func (f FlexInt) Int() int {
	return int(f)
}

var _ json.Unmarshaler = (*FlexInt)(nil)

// DetailsResponse represents the response from the bioRxiv details endpoint.
type DetailsResponse struct {
	Messages   []Message `json:"messages"`
	Collection []Preprint `json:"collection"`
}

// Message carries paging metadata for a details request. The API returns
// exactly one message per response.
type Message struct {
	Status string `json:"status"`
	// Total is the total number of preprints in the requested interval.
	// The API sometimes returns it as a string, hence the custom decoder.
	Total  FlexInt `json:"total"`
	Count  int     `json:"count"`
	Cursor FlexInt `json:"cursor"`
}

// Preprint is one record in a details response.
type Preprint struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`

	// Authors is a single semicolon-separated string, e.g.
	// "Smith, J.; Doe, A.".
	Authors string `json:"authors"`

	// Date is the posting date in YYYY-MM-DD format.
	Date string `json:"date"`

	Category string `json:"category"`
	Version  string `json:"version"`
	Server   string `json:"server"`
}
