/*
Copyright 2026 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package backoff

import (
	"context"
	"math/rand"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// Backoff waits between attempts.
type Backoff interface {
	// Do waits for the next delay or until the context is done.
	Do(ctx context.Context) error
	// Reset starts the delay sequence over.
	Reset()
}

type decorr struct {
	base  int64
	cap   int64
	mul   int64
	sleep int64
	clock clockwork.Clock
}

// Decorr returns a decorrelated jitter backoff: every delay is a random value
// between base and three times the previous delay, capped at cap.
func Decorr(base, cap time.Duration) Backoff {
	return NewDecorr(base, cap, clockwork.NewRealClock())
}

// NewDecorr is Decorr with a custom clock.
func NewDecorr(base, cap time.Duration, clock clockwork.Clock) Backoff {
	if base <= 0 {
		base = time.Millisecond
	}
	if cap < base {
		cap = base
	}
	return &decorr{
		base:  int64(base),
		cap:   int64(cap),
		mul:   3,
		sleep: int64(base),
		clock: clock,
	}
}

// Do implements Backoff
func (backoff *decorr) Do(ctx context.Context) error {
	backoff.sleep = backoff.next()
	select {
	case <-backoff.clock.After(time.Duration(backoff.sleep)):
		return nil
	case <-ctx.Done():
		return trace.Wrap(ctx.Err())
	}
}

// Reset implements Backoff
func (backoff *decorr) Reset() {
	backoff.sleep = backoff.base
}

func (backoff *decorr) next() int64 {
	spread := backoff.sleep*backoff.mul - backoff.base
	sleep := backoff.base
	if spread > 0 {
		sleep += rand.Int63n(spread)
	}
	if sleep > backoff.cap {
		sleep = backoff.cap
	}
	return sleep
}
