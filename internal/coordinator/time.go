package coordinator

import "time"

// timeNow is a package-level variable for testability.
// Tests replace it to drive undo expiry.
var timeNow = time.Now
