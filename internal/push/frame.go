package push

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/five82/dashsync/internal/status"
)

// TypeStatusUpdate is the discriminant of frames carrying a status payload.
const TypeStatusUpdate = "status_update"

// Frame is an inbound push message.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeStatusUpdate extracts the payload of a status_update frame. It
// reports false for malformed data, other frame types, and frames without
// an object payload.
func DecodeStatusUpdate(data []byte) (status.Snapshot, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	if gjson.GetBytes(data, "type").String() != TypeStatusUpdate {
		return nil, false
	}
	payload := gjson.GetBytes(data, "payload")
	if !payload.IsObject() {
		return nil, false
	}
	snap, err := status.Decode([]byte(payload.Raw))
	if err != nil {
		return nil, false
	}
	return snap, true
}
