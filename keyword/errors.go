package keyword

import "errors"

// Mirrors bindex's taxonomy. Read returns these and does not rebuild the
// index; engine's SearchKeyword passes them on to its caller wrapped.
var (
	ErrStale   = errors.New("keyword: stale index")
	ErrCorrupt = errors.New("keyword: corrupt index file")
	ErrNoIndex = errors.New("keyword: no index")
)
