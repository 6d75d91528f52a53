// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package native

import "strings"

const maxTopicLen = 250

// topicValid reports whether a topic or subscription string is acceptable to
// the engine: non-empty, bounded, no empty levels, no NUL bytes.
func topicValid(topic string) bool {
	if topic == "" || len(topic) > maxTopicLen {
		return false
	}
	if strings.IndexByte(topic, 0) >= 0 {
		return false
	}
	for _, level := range strings.Split(topic, "/") {
		if level == "" {
			return false
		}
	}
	return true
}

// topicMatch checks if the topic matches the subscription according to the
// engine's wildcard rules.
// Rules:
//   - levels are separated by '/'.
//   - '*' as a whole level matches exactly one level; as a level suffix
//     ("abc*") it matches one level with the given prefix.
//   - '>' as the final level matches one or more remaining levels.
//   - topic must not contain wildcards.
func topicMatch(sub, topic string) bool {
	if sub == "" || topic == "" {
		return false
	}
	if sub == topic {
		return true
	}

	subLevels := strings.Split(sub, "/")
	topicLevels := strings.Split(topic, "/")

	for i, sLevel := range subLevels {
		// '>' must be the last level; it requires at least one more
		// topic level.
		if sLevel == ">" && i == len(subLevels)-1 {
			return i < len(topicLevels)
		}

		if i >= len(topicLevels) {
			return false
		}

		tLevel := topicLevels[i]

		if sLevel == "*" {
			continue
		}

		if strings.HasSuffix(sLevel, "*") {
			if strings.HasPrefix(tLevel, sLevel[:len(sLevel)-1]) {
				continue
			}
			return false
		}

		if sLevel != tLevel {
			return false
		}
	}

	return len(subLevels) == len(topicLevels)
}
