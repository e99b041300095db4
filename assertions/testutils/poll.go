package testutils

import (
	"time"

	"gotest.tools/v3/poll"
)

// The delay between two evaluations of the condition in `AssertTrueBeforeTimeout`.
const PollInterval = 10 * time.Millisecond

// Fail the test unless `condition` returns `true` before `timeout` elapses.
//
// `condition` is evaluated again at every tick, from another goroutine, so it
// must be safe to call concurrently with the test body (e.g. use `sync/atomic`).
// On timeout, the test is stopped with a message built from `format` and `args`.
func AssertTrueBeforeTimeout(t poll.TestingT, timeout time.Duration, condition func() bool, format string, args ...any) {
	if helper, ok := t.(interface{ Helper() }); ok {
		helper.Helper()
	}
	check := func(poll.LogT) poll.Result {
		if condition() {
			return poll.Success()
		}
		return poll.Continue(format, args...)
	}
	poll.WaitOn(t, check, poll.WithTimeout(timeout), poll.WithDelay(PollInterval))
}
