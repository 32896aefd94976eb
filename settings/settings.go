// settings persists the small set of operator preferences that outlive a session: the last
// robot direction, the image log, the last received and sent messages, the peer connection
// status, and the preset messages.
package settings

import (
	"context"
	"errors"
)

// Keys written by the controller.
const (
	Direction    = "direction"
	ImageLog     = "image"
	ReceivedText = "receivedText"
	SentText     = "sentText"
	ConnStatus   = "connStatus"
	PresetF1     = "F1"
	PresetF2     = "F2"
)

// ErrNotFound is returned by Get for a key that was never set or has been deleted.
var ErrNotFound = errors.New("setting not found")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
