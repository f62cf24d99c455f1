package types

// Decision is a rate-limit verdict for one key.
// Kept outside the limiter package so repo-level scripts and the admission
// pipeline can share it without an import cycle.
type Decision struct {
	Allowed      bool   // request admitted
	Remaining    int64  // budget left in the current window
	RetryAfterMs int64  // time until the window resets (when denied)
	Reason       string // allowed | rate_limited | fail_open | fail_closed | ...
	Err          error  // backend error, if any
}
