// Package capi builds, batches and delivers events to the Facebook Conversions API.
package capi

import "github.com/BarkinBalci/conversion-reporting-service/internal/domain"

// Event names understood by the Conversions API
const (
	EventPageView    = "Page View"
	EventViewContent = "View Content"
	EventPurchase    = "Purchase"
)

const (
	actionSourceWebsite = "website"
	currencyUSD         = "USD"
)

// Event is a single server event sent to the Conversions API
type Event struct {
	EventName    string     `json:"event_name"`
	EventTime    int64      `json:"event_time"`
	EventID      string     `json:"event_id"`
	ActionSource string     `json:"action_source"`
	UserData     UserData   `json:"user_data"`
	CustomData   CustomData `json:"custom_data"`
	OptOut       bool       `json:"opt_out"`
}

// UserData carries the matching keys of an event. Country, city and state are SHA-256 hashed.
type UserData struct {
	Country         []string `json:"country"`
	City            []string `json:"ct"`
	State           []string `json:"st"`
	ClientIPAddress string   `json:"client_ip_address"`
	ClientUserAgent string   `json:"client_user_agent"`
	Fbc             string   `json:"fbc"`
	Fbp             string   `json:"fbp"`
}

type CustomData struct {
	ContentType     string   `json:"content_type,omitempty"`
	ContentCategory string   `json:"content_category,omitempty"`
	ContentName     string   `json:"content_name,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	Value           *float64 `json:"value,omitempty"`
}

// SourcedEvent pairs an event with the record it was expanded from
type SourcedEvent struct {
	Event  Event
	Source domain.Key
}

// Batch is a group of events for one pixel sent in a single request
type Batch struct {
	PixelID string
	Events  []Event
	// Sources lists the distinct records contributing events, in first-seen order
	Sources []domain.Key
}
