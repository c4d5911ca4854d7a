// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewID returns a ULID that sorts after every id previously returned in
// this process.
func NewID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// ParseID parses a timer id as printed by ulid.ULID.String.
func ParseID(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_TIMER_ID").With("id", s).Wrap(err)
	}
	return id, nil
}
