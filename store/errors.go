/*
Copyright 2025 The Antfly Contributors

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

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound reports that a requested entity does not exist in the
	// active specification.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable reports a transient store failure after bounded
	// retries. The caller's transport layer may retry the operation.
	ErrUnavailable = errors.New("store unavailable")

	// ErrIntegrity reports an ingest that would violate a store
	// invariant. The ingest transaction rolls back.
	ErrIntegrity = errors.New("store integrity violation")
)

// isTransient reports whether err is a file-lock contention error that
// a later attempt may not hit.
func isTransient(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}

// withRetry runs fn, retrying transient lock errors with exponential
// backoff up to the configured bound, then surfaces ErrUnavailable.
// Context cancellation and deadline pass through unchanged.
func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.opts.LockRetries), ctx)
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isTransient(err) {
		s.log.Warn("store lock contention exhausted retries")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
