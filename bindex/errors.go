package bindex

import "errors"

// The column and predicate packages downgrade all of these to a plain
// scan rather than propagating them to the query layer.
var (
	// ErrStale means the on-disk index's nrows does not match the
	// partition's current row count; the index must be unloaded and deleted.
	ErrStale = errors.New("bindex: stale index")
	// ErrCorrupt means the header magic or offset table failed validation;
	// recovery is identical to ErrStale.
	ErrCorrupt = errors.New("bindex: corrupt index file")
	// ErrNoIndex means the index file exists but is empty (size 0), which is
	// not an error condition: it simply means "no index".
	ErrNoIndex = errors.New("bindex: no index")
	// ErrUnsupported means the flavor does not implement the requested
	// operation.
	ErrUnsupported = errors.New("bindex: unsupported operation for this flavor")
)
