package domain

import (
	"fmt"
	"strings"
)

// Network identifies the upstream ad network that reported a conversion
type Network string

const (
	NetworkTonic      Network = "tonic"
	NetworkSedo       Network = "sedo"
	NetworkCrossroads Network = "crossroads"
)

// ParseNetwork normalizes a free-form network name
func ParseNetwork(s string) Network {
	return Network(strings.ToLower(strings.TrimSpace(s)))
}

// Key is the idempotency key of a conversion record
type Key struct {
	SessionID      string
	KeywordClicked string
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s", k.SessionID, k.KeywordClicked)
}

// ConversionRecord represents one ad-click conversion reported by an upstream network
type ConversionRecord struct {
	SessionID      string       `json:"session_id"`
	KeywordClicked string       `json:"keyword_clicked"`
	PixelID        string       `json:"pixel_id"`
	ClickTimestamp EpochSeconds `json:"click_timestamp"`
	TsClickID      string       `json:"ts_click_id"`
	CountryCode    string       `json:"country_code"`
	Region         string       `json:"region"`
	City           string       `json:"city"`
	IP             string       `json:"ip"`
	UserAgent      string       `json:"user_agent"`
	Conversions    int          `json:"conversions"`
	Revenue        float64      `json:"revenue"`
	LanderVisitors int          `json:"lander_visitors"`
	LanderSearches int          `json:"lander_searches"`
	Network        Network      `json:"network"`
	CampaignID     string       `json:"campaign_id"`
	TrafficSource  string       `json:"traffic_source,omitempty"`
	Vertical       string       `json:"vertical,omitempty"`
	Category       string       `json:"category,omitempty"`

	Valid         bool    `json:"valid"`
	InvalidReason *string `json:"invalid_reason"`
	Reported      int     `json:"reported"`
	Landings      int     `json:"landings"`
	SerpLandings  int     `json:"serp_landings"`
}

// Key returns the idempotency key of the record
func (r ConversionRecord) Key() Key {
	return Key{SessionID: r.SessionID, KeywordClicked: r.KeywordClicked}
}

// Invalidate marks the record invalid with the given reason
func (r *ConversionRecord) Invalidate(reason string) {
	r.Valid = false
	r.InvalidReason = &reason
}

// WithLandings returns a copy of the record with landings derived from its network.
// Networks without a landing model keep their existing values.
func (r ConversionRecord) WithLandings() ConversionRecord {
	switch r.Network {
	case NetworkTonic, NetworkSedo:
		r.Landings = 1
		r.SerpLandings = 1
	case NetworkCrossroads:
		r.Landings = r.LanderVisitors
		r.SerpLandings = r.LanderSearches
	}
	return r
}
