// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package signal

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// newSendID generates the ULID that tags one Send fan-out.
func newSendID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}
