// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vault

import (
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// uidLayout formats a timestamp as a 14-digit sortable uid.
const uidLayout = "20060102150405"

// timestampLayout is the human-readable commit timestamp format.
const timestampLayout = "2006-01-02 15:04:05"

// uidSource issues commit uids: second-resolution timestamps that are
// strictly increasing even when commits land within the same second.
//
// Thread Safety: safe for concurrent use.
type uidSource struct {
	mu   sync.Mutex
	now  func() time.Time
	last string
}

func newUIDSource(now func() time.Time) *uidSource {
	if now == nil {
		now = time.Now
	}
	return &uidSource{now: now}
}

// Next returns the next uid. When the clock has not advanced past the
// previous uid, the previous one is bumped by a second instead.
func (s *uidSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.now().Format(uidLayout)
	if s.last != "" && uid <= s.last {
		n, err := strconv.ParseInt(s.last, 10, 64)
		if err == nil {
			uid = strconv.FormatInt(n+1, 10)
		}
	}
	s.last = uid
	return uid
}

// Slugify lowercases text, replaces every non-alphanumeric rune with
// "-", collapses runs of "-" and trims the result to maxLen runes.
func Slugify(text string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	s := strings.Join(parts, "-")
	if maxLen > 0 && len(s) > maxLen {
		s = strings.Trim(s[:maxLen], "-")
	}
	return s
}
