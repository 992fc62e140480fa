package relay

import (
	"encoding/json"

	"github.com/deekay/bitcaptcha/internal/domain"
)

// Inbound frame labels.
const (
	frameEvent  = "EVENT"
	frameEOSE   = "EOSE"
	frameOK     = "OK"
	frameNotice = "NOTICE"
)

// Filter selects events by kind, tag values and a lower time bound. The
// transport sends it verbatim and never interprets it.
type Filter struct {
	Kinds      []int    `json:"kinds,omitempty"`
	Authors    []string `json:"authors,omitempty"`
	EventRefs  []string `json:"#e,omitempty"`
	PubKeyRefs []string `json:"#p,omitempty"`
	Since      int64    `json:"since,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Message is one parsed inbound frame.
type Message struct {
	Type           string
	SubscriptionID string

	// EVENT
	Event *domain.Event

	// OK
	EventID  string
	Accepted bool
	Detail   string

	// NOTICE
	Notice string
}

func encodeReq(id string, f Filter) ([]byte, error) {
	return json.Marshal([]any{"REQ", id, f})
}

func encodeEvent(ev *domain.Event) ([]byte, error) {
	return json.Marshal([]any{"EVENT", ev})
}

func encodeClose(id string) ([]byte, error) {
	return json.Marshal([]any{"CLOSE", id})
}

// parseMessage decodes one inbound frame. Unknown labels come back as a
// Message with the raw label in Type so the caller can ignore them.
func parseMessage(raw []byte) (Message, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return Message{}, domain.Wrap(domain.ErrTransport, "malformed frame", err)
	}
	if len(arr) == 0 {
		return Message{}, domain.E(domain.ErrTransport, "empty frame")
	}

	var label string
	if err := json.Unmarshal(arr[0], &label); err != nil {
		return Message{}, domain.Wrap(domain.ErrTransport, "malformed frame label", err)
	}
	msg := Message{Type: label}

	switch label {
	case frameEvent:
		if len(arr) < 3 {
			return Message{}, domain.E(domain.ErrTransport, "short EVENT frame")
		}
		if err := json.Unmarshal(arr[1], &msg.SubscriptionID); err != nil {
			return Message{}, domain.Wrap(domain.ErrTransport, "EVENT subscription id", err)
		}
		msg.Event = &domain.Event{}
		if err := json.Unmarshal(arr[2], msg.Event); err != nil {
			return Message{}, domain.Wrap(domain.ErrTransport, "EVENT body", err)
		}
	case frameEOSE:
		if len(arr) < 2 {
			return Message{}, domain.E(domain.ErrTransport, "short EOSE frame")
		}
		if err := json.Unmarshal(arr[1], &msg.SubscriptionID); err != nil {
			return Message{}, domain.Wrap(domain.ErrTransport, "EOSE subscription id", err)
		}
	case frameOK:
		if len(arr) < 3 {
			return Message{}, domain.E(domain.ErrTransport, "short OK frame")
		}
		if err := json.Unmarshal(arr[1], &msg.EventID); err != nil {
			return Message{}, domain.Wrap(domain.ErrTransport, "OK event id", err)
		}
		if err := json.Unmarshal(arr[2], &msg.Accepted); err != nil {
			return Message{}, domain.Wrap(domain.ErrTransport, "OK verdict", err)
		}
		if len(arr) > 3 {
			_ = json.Unmarshal(arr[3], &msg.Detail)
		}
	case frameNotice:
		if len(arr) > 1 {
			_ = json.Unmarshal(arr[1], &msg.Notice)
		}
	}
	return msg, nil
}
