// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package solclient

import (
	"log/slog"
	"sync/atomic"

	"github.com/absmach/solclient/internal/native"
)

// CacheSession wraps a Session for replay-cache queries. It owns the Session
// it was created from: Close destroys the cache session and then the Session
// underneath, so close the CacheSession instead of the Session.
type CacheSession struct {
	h      native.CacheSessionHandle
	sess   *Session
	log    *slog.Logger
	closed atomic.Bool
}

// Session returns the underlying Session, for publishing and live
// subscriptions alongside cache requests.
func (c *CacheSession) Session() *Session {
	return c.sess
}

// Request asks the cache for messages matching the topic and blocks until
// the request completes. Matching cached messages arrive through the
// session's message callback, each stamped with requestID so live and cached
// deliveries can be told apart. A cache with no matching data is an error.
func (c *CacheSession) Request(topic string, requestID uint64) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	if containsNUL(topic) {
		return &InvalidArgsError{Field: "topic"}
	}
	if rc := native.CacheSessionSendCacheRequest(c.h, topic, requestID); !rc.IsOk() {
		return &CacheRequestError{lastDiagnostics(rc)}
	}
	return nil
}

// Close destroys the cache session and then the owned Session. Failures are
// logged, never returned. Close is idempotent.
func (c *CacheSession) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if rc := native.CacheSessionDestroy(c.h); !rc.IsOk() {
		c.log.Warn("cache session destroy failed", "code", rc.String())
	}
	c.sess.Close()
}
