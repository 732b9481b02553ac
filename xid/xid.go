// Package xid generates short, human-readable correlation IDs and
// temp-file tie-break suffixes.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package xid

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/teris-io/shortid"
)

// abc is deliberately longer than 0x3f entries so Tie's masked indices are
// always in range.
const abc = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid  *shortid.Shortid
	rtie int32
)

func init() {
	sid = shortid.MustNew(4 /*worker*/, abc, uint64(time.Now().UnixNano()))
}

// Gen generates a short, sortable-ish, human-readable ID for migration
// tasks.
func Gen() string {
	id := sid.MustGenerate()
	var h, t string
	if !isAlpha(id[0]) {
		h = string(rune('A' + rand.Intn(26)))
	}
	if c := id[len(id)-1]; c == '-' || c == '_' {
		t = string(rune('a' + rand.Intn(26)))
	}
	return h + id + t
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Tie returns a short, process-unique suffix so two concurrent writers of
// the same base path never pick the same temp file name.
func Tie() string {
	tie := atomic.AddInt32(&rtie, 1)
	b0 := abc[tie&0x3f]
	b1 := abc[-tie&0x3f]
	b2 := abc[(tie>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
