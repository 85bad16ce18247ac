package radixk

import "errors"

// ErrNotInGroup is raised when the caller's rank does not appear in the
// compose_group passed to Compose.
var ErrNotInGroup = errors.New("radixk: local process not in compose group")

// ErrSanityCheck is raised for any of the fatal invariant violations the
// algorithm checks for itself: a factorization whose product doesn't
// match the group size, zero rounds, or a received image of the wrong
// pixel count.
var ErrSanityCheck = errors.New("radixk: sanity check failed")
