package authgate

import "time"

// nowUTC is swapped out by tests that need a fixed clock.
var nowUTC = func() time.Time { return time.Now().UTC() }
