package profile

import (
	"encoding/json"
	"errors"

	"datakit/core/cluster"
)

// unmarshalPayload decodes an event's opaque payload block, requiring a
// non-empty id.
func unmarshalPayload(ev cluster.Event, out *struct {
	ID string `json:"id"`
}) error {
	if len(ev.Payload) == 0 {
		return errors.New("profile: empty event payload")
	}
	if err := json.Unmarshal(ev.Payload, out); err != nil {
		return err
	}
	if out.ID == "" {
		return errors.New("profile: event payload has no id")
	}
	return nil
}
