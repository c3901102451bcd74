/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"path"
)

type metricsMatcher struct {
	rejectAll       bool
	exclusionLabels []string
	exclusionKeys   []string
}

// isExclusionLabels reports whether a label name matches an exclusion pattern.
func (m *metricsMatcher) isExclusionLabels(labels map[string]string) bool {
	if m.rejectAll {
		return true
	}
	for _, pattern := range m.exclusionLabels {
		for label := range labels {
			if match(pattern, label) {
				return true
			}
		}
	}
	return false
}

// isExclusionKey reports whether key matches an exclusion pattern.
func (m *metricsMatcher) isExclusionKey(key string) bool {
	if m.rejectAll {
		return true
	}
	for _, pattern := range m.exclusionKeys {
		if match(pattern, key) {
			return true
		}
	}
	return false
}

// match uses shell patterns, "lock.*" excludes every lock metric
func match(pattern, s string) bool {
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}
