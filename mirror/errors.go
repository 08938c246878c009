package mirror

import "errors"

// ErrNoProgress reports a batch in which every single fetch failed. The
// operation aborts instead of re-sampling the same doomed ids forever;
// the next cycle retries them.
var ErrNoProgress = errors.New("mirror: no progress in fetch batch")
