// Package cos - see err.go for the package-level design note.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"fmt"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenID produces a short, locally-unique identifier for an RoI that wasn't
// given an explicit id (e.g. a manually-specified rectangle). This replaces
// shortid/xxhash-based daemon and bucket identifier machinery used to mint
// cluster-wide names in a long-lived server - a concept with no counterpart
// in a single-process batch job; see DESIGN.md.
func GenID(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is unrecoverable (no entropy source); fall back
		// to a fixed, clearly-synthetic id rather than panicking mid-scan.
		return fmt.Sprintf("roi-%d", n)
	}
	out := make([]byte, n)
	for i, c := range b {
		out[i] = idAlphabet[int(c)%len(idAlphabet)]
	}
	return string(out)
}
