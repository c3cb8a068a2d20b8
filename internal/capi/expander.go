package capi

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/BarkinBalci/conversion-reporting-service/internal/domain"
)

// eventNamespace scopes the name-based UUIDs used for event and browser ids
var eventNamespace = uuid.MustParse("6f1c1a3e-5d2b-4c8e-9a47-2b0d8e4f7c31")

// Expansion is the result of expanding one conversion record
type Expansion struct {
	// Record is the source record with landings derived from its network
	Record domain.ConversionRecord
	Events []Event
}

// Expand turns a valid conversion record into the ordered list of events reported for it.
// Identifiers are derived from (ts_click_id, click_timestamp, event name, iteration), so
// expanding the same record twice yields identical event ids.
func Expand(rec domain.ConversionRecord) Expansion {
	ts, _ := rec.ClickTimestamp.Int64()
	clickMillis := rec.ClickTimestamp.Millis()

	userData := UserData{
		Country:         []string{hashValue(strings.ToLower(rec.CountryCode))},
		City:            []string{hashValue(stripSpaces(strings.ToLower(rec.City)))},
		State:           []string{hashValue(normalizeState(rec.CountryCode, rec.Region))},
		ClientIPAddress: rec.IP,
		ClientUserAgent: rec.UserAgent,
		Fbc:             fmt.Sprintf("fb.1.%d.%s", clickMillis, rec.TsClickID),
		Fbp:             fmt.Sprintf("fb.1.%d.%s", clickMillis, nonce(rec.TsClickID, ts, "fbp", 0)),
	}

	b := eventBuilder{rec: rec, ts: ts, userData: userData}

	var pageViews, viewContents int
	switch rec.Network {
	case domain.NetworkTonic, domain.NetworkSedo:
		pageViews, viewContents = 1, 1
	case domain.NetworkCrossroads:
		pageViews, viewContents = max(rec.LanderVisitors, 0), max(rec.LanderSearches, 0)
	}

	purchases := max(rec.Conversions, 0)
	events := make([]Event, 0, pageViews+viewContents+purchases)

	for i := 0; i < pageViews; i++ {
		events = append(events, b.build(EventPageView, i, CustomData{}))
	}

	for i := 0; i < viewContents; i++ {
		events = append(events, b.build(EventViewContent, i, CustomData{
			ContentName: rec.KeywordClicked,
		}))
	}

	if purchases > 0 {
		value := rec.Revenue / float64(purchases)
		for i := 0; i < purchases; i++ {
			v := value
			events = append(events, b.build(EventPurchase, i, CustomData{
				Currency:    currencyUSD,
				Value:       &v,
				ContentName: rec.KeywordClicked,
			}))
		}
	}

	return Expansion{
		Record: rec.WithLandings(),
		Events: events,
	}
}

type eventBuilder struct {
	rec      domain.ConversionRecord
	ts       int64
	userData UserData
}

func (b eventBuilder) build(name string, iteration int, custom CustomData) Event {
	custom.ContentType = b.rec.Vertical
	custom.ContentCategory = b.rec.Category

	return Event{
		EventName:    name,
		EventTime:    b.ts,
		EventID:      fmt.Sprintf("%s-%d-%s", b.rec.TsClickID, iteration, nonce(b.rec.TsClickID, b.ts, name, iteration)),
		ActionSource: actionSourceWebsite,
		UserData:     b.userData,
		CustomData:   custom,
		OptOut:       false,
	}
}

func nonce(tsClickID string, ts int64, name string, iteration int) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%s|%d|%s|%d", tsClickID, ts, name, iteration)))
}

func hashValue(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
