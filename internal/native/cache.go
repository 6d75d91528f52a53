// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import "time"

// maxCachedPerTopic bounds the per-topic replay cache.
const maxCachedPerTopic = 64

type cachedMsg struct {
	rec *msgRecord
	ts  time.Time
}

// cacheStore records a routed topic message for later cache requests.
// Caller holds the vpn mutex.
func (v *vpnState) cacheStore(topic string, w *msgRecord) {
	rec := *w
	ring := append(v.cache[topic], cachedMsg{rec: &rec, ts: time.Now()})
	if len(ring) > maxCachedPerTopic {
		ring = ring[len(ring)-maxCachedPerTopic:]
	}
	v.cache[topic] = ring
}

type cacheSessionState struct {
	h    CacheSessionHandle
	sess *sessionState

	cacheName string
	maxMsgs   int
	maxAge    time.Duration
}

// CacheSessionCreate creates a cache session bound to the given session.
func CacheSessionCreate(props []string, sessH SessionHandle) (CacheSessionHandle, ReturnCode) {
	s, ok := lookupSession(sessH)
	if !ok {
		setLastError(SubCodeCacheInvalidSession, "session handle %d is not valid", sessH)
		return 0, Fail
	}
	m, ok := parseProps(props)
	if !ok {
		setLastError(SubCodeParamOutOfRange, "cache session property list is not a key/value sequence")
		return 0, Fail
	}
	name := m[CacheSessionPropCacheName]
	if name == "" {
		setLastError(SubCodeParamNullPtr, "cache name is required")
		return 0, Fail
	}

	c := &cacheSessionState{
		sess:      s,
		cacheName: name,
		maxMsgs:   propInt(m, CacheSessionPropMaxMsgs, 1),
		maxAge:    time.Duration(propInt(m, CacheSessionPropMaxAge, 0)) * time.Second,
	}
	lib.mu.Lock()
	c.h = CacheSessionHandle(nextID())
	lib.cacheSessions[c.h] = c
	lib.mu.Unlock()
	return c.h, Ok
}

// CacheSessionDestroy destroys the cache session. The underlying session is
// untouched.
func CacheSessionDestroy(h CacheSessionHandle) ReturnCode {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if _, ok := lib.cacheSessions[h]; !ok {
		setLastError(SubCodeParamNullPtr, "cache session handle %d is not valid", h)
		return Fail
	}
	delete(lib.cacheSessions, h)
	return Ok
}

// CacheSessionSendCacheRequest replays cached messages matching the topic
// through the owning session's message callback, each flagged with the given
// request ID. Completion is synchronous; no matching data fails with
// CACHE_NO_DATA.
func CacheSessionSendCacheRequest(h CacheSessionHandle, topic string, requestID uint64) ReturnCode {
	lib.mu.Lock()
	c, ok := lib.cacheSessions[h]
	lib.mu.Unlock()
	if !ok {
		setLastError(SubCodeParamNullPtr, "cache session handle %d is not valid", h)
		return Fail
	}
	s := c.sess
	if !s.isConnected() {
		setLastError(SubCodeCacheInvalidSession, "session %d is not connected", s.h)
		return NotReady
	}
	if !subscriptionValid(topic) {
		setLastError(SubCodeInvalidTopicSyntax, "cache request topic %q is not valid", topic)
		return Fail
	}

	v := s.vpn
	v.mu.Lock()
	now := time.Now()
	matched := make([]MessageHandle, 0)
	for cachedTopic, ring := range v.cache {
		if !topicMatch(topic, cachedTopic) {
			continue
		}
		start := 0
		if c.maxMsgs > 0 && len(ring) > c.maxMsgs {
			start = len(ring) - c.maxMsgs
		}
		for _, cm := range ring[start:] {
			if c.maxAge > 0 && now.Sub(cm.ts) > c.maxAge {
				continue
			}
			rec := *cm.rec
			id := requestID
			rec.cacheRequestID = &id
			matched = append(matched, deliveryHandle(&rec))
		}
	}
	v.mu.Unlock()

	if len(matched) == 0 {
		setLastError(SubCodeCacheNoData, "cache %q has no data for topic %q", c.cacheName, topic)
		return Fail
	}
	for _, mh := range matched {
		s.deliverMsg(mh)
	}
	return Ok
}
