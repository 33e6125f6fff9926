package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestLocationPayloadKeepsZeroCoordinates(t *testing.T) {
	// 0.0 is the equator / prime meridian, not an absent value.
	zero := 0.0
	payload := WSMessage{
		Event:     "location:receive",
		UserID:    1,
		Lat:       &zero,
		Lng:       &zero,
		Timestamp: 1700000000000,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(raw)
	if !strings.Contains(s, `"lat":0`) || !strings.Contains(s, `"lng":0`) {
		t.Fatalf("zero coordinates dropped from payload: %s", s)
	}
}
