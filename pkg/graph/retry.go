// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package graph

import (
	"context"
	"math"
	"time"

	"github.com/kraklabs/rcie/pkg/errs"
)

// withRetry implements spec.md §4.5 "Retry discipline": exponential backoff
// governed by the configured initial_delay_ms/base/max_delay_ms/max_attempts,
// retrying only on errors errs.IsTransient recognizes; every other error
// surfaces immediately, shaped on the model of the teacher's RetryConfig
// (pkg/ingestion/config.go).
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	retryCfg := c.cfg.Retry
	if !retryCfg.Enabled {
		return fn()
	}

	maxAttempts := retryCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delay := time.Duration(retryCfg.InitialDelayMs) * time.Millisecond
	maxDelay := time.Duration(retryCfg.MaxDelayMs) * time.Millisecond
	base := retryCfg.ExponentialBase
	if base <= 1 {
		base = 2.0
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.IsTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		c.logger.Warn("graph.retry", "op", op, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		next := time.Duration(float64(delay) * base)
		if maxDelay > 0 && next > maxDelay {
			next = maxDelay
		}
		delay = next
	}
	return errs.New(errs.KindTransaction, op, lastErr)
}

// backoffSchedule is exposed for tests that want to assert the delay
// progression without sleeping through it.
func backoffSchedule(initial time.Duration, base float64, max time.Duration, attempts int) []time.Duration {
	out := make([]time.Duration, 0, attempts)
	d := initial
	for i := 0; i < attempts; i++ {
		out = append(out, d)
		next := time.Duration(math.Round(float64(d) * base))
		if max > 0 && next > max {
			next = max
		}
		d = next
	}
	return out
}
