package jobstore

import (
	"fmt"

	"github.com/skillsenselab/meet-transcriber/internal/errors"
	"github.com/skillsenselab/meet-transcriber/internal/transcript"
)

func errTerminalTransition(from, to transcript.Status) error {
	return errors.Internal(fmt.Errorf("job store: transition out of terminal state %s -> %s", from, to))
}

func errInvalidTransition(from, to transcript.Status) error {
	return errors.Internal(fmt.Errorf("job store: invalid transition %s -> %s", from, to))
}
