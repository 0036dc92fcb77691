// Package bridge is the messaging bridge between the settings panel and a
// running engine, plus the HTTP surface the panel itself uses. The only
// message defined is "reloadSettings", sent after every panel write.
package bridge

import (
	"errors"
	"fmt"
)

// ActionReloadSettings tells the engine to reload its configuration and
// re-run a pass.
const ActionReloadSettings = "reloadSettings"

// ErrUnknownAction is returned for any action other than the known ones.
var ErrUnknownAction = errors.New("bridge: unknown action")

// Message is the envelope carried over the bridge.
type Message struct {
	Action string `json:"action"`
}

// Validate rejects messages the engine does not understand.
func (m Message) Validate() error {
	switch m.Action {
	case ActionReloadSettings:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownAction, m.Action)
	}
}
