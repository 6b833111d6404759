package knowledge

import "errors"

var (
	// ErrCorrupt reports a store file that is not valid JSON.
	ErrCorrupt = errors.New("knowledge: store file is not valid JSON")

	// ErrEmptyTopic reports a topic that normalizes to nothing.
	ErrEmptyTopic = errors.New("knowledge: empty topic")
)
