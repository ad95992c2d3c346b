package combo

import "errors"

// Matcher errors. Rejections happen at registration time; runtime faults
// are logged and dropped.
var (
	// ErrCandidateTableFull rejects a combo/chord config with more than
	// MaxPositions key positions at registration time: the fixed-size
	// candidate table has no room to index it.
	ErrCandidateTableFull = errors.New("combo: too many key positions in one combo")

	// ErrQueueFull surfaces capture.ErrQueueFull without re-exporting it.
	ErrQueueFull = errors.New("combo: capture queue full, press dropped")
)
