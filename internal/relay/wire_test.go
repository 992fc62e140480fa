package relay

import (
	"encoding/json"
	"testing"
)

func TestParseEventFrame(t *testing.T) {
	raw := []byte(`["EVENT","sub-1",{"id":"abc","pubkey":"def","created_at":1700000000,"kind":23195,"tags":[["e","abc"]],"content":"payload","sig":"00"}]`)
	msg, err := parseMessage(raw)
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.Type != "EVENT" || msg.SubscriptionID != "sub-1" {
		t.Fatalf("unexpected frame: %+v", msg)
	}
	if msg.Event == nil || msg.Event.Kind != 23195 || msg.Event.Tag("e") != "abc" {
		t.Fatalf("event not decoded: %+v", msg.Event)
	}
}

func TestParseEOSEFrame(t *testing.T) {
	msg, err := parseMessage([]byte(`["EOSE","sub-9"]`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.Type != "EOSE" || msg.SubscriptionID != "sub-9" {
		t.Fatalf("unexpected frame: %+v", msg)
	}
}

func TestParseOKFrame(t *testing.T) {
	msg, err := parseMessage([]byte(`["OK","evid",false,"blocked: rate limited"]`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.Type != "OK" || msg.EventID != "evid" || msg.Accepted || msg.Detail != "blocked: rate limited" {
		t.Fatalf("unexpected frame: %+v", msg)
	}
}

func TestParseNoticeFrame(t *testing.T) {
	msg, err := parseMessage([]byte(`["NOTICE","slow down"]`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.Type != "NOTICE" || msg.Notice != "slow down" {
		t.Fatalf("unexpected frame: %+v", msg)
	}
}

func TestParseRejectsMalformedFrames(t *testing.T) {
	for _, raw := range []string{``, `{}`, `[]`, `["EVENT"]`, `["EOSE"]`, `["OK","id"]`, `not json`} {
		if _, err := parseMessage([]byte(raw)); err == nil {
			t.Errorf("parseMessage(%q) accepted", raw)
		}
	}
}

func TestParseUnknownLabelPassesThrough(t *testing.T) {
	msg, err := parseMessage([]byte(`["AUTH","challenge"]`))
	if err != nil {
		t.Fatalf("parseMessage: %v", err)
	}
	if msg.Type != "AUTH" {
		t.Fatalf("unexpected type %q", msg.Type)
	}
}

func TestEncodeReqCarriesTagFilters(t *testing.T) {
	raw, err := encodeReq("sub-1", Filter{
		Kinds:      []int{23195},
		EventRefs:  []string{"reqid"},
		PubKeyRefs: []string{"ourkey"},
		Since:      1700000000,
	})
	if err != nil {
		t.Fatalf("encodeReq: %v", err)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 3 {
		t.Fatalf("REQ frame should be a 3-element array: %s", raw)
	}
	var f map[string]any
	if err := json.Unmarshal(arr[2], &f); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if _, ok := f["#e"]; !ok {
		t.Errorf("filter lost the #e tag selector: %s", arr[2])
	}
	if _, ok := f["#p"]; !ok {
		t.Errorf("filter lost the #p tag selector: %s", arr[2])
	}
}
