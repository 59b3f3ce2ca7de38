// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/AleutianAI/BlendVault/services/vault/scene"
)

// FloatDigits is the fixed decimal precision applied to every floating
// value before hashing. Quantizing here is what makes signatures stable
// under host-application round-trip noise.
const FloatDigits = 6

func sha256Hex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// fmtFloat quantizes one value to FloatDigits decimals.
func fmtFloat(v float64) string {
	return fmt.Sprintf("%.*f", FloatDigits, v)
}

// fmtFloats quantizes and comma-joins a float slice.
func fmtFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmtFloat(v)
	}
	return strings.Join(parts, ",")
}

func fmtVec3(v scene.Vec3) string { return fmtFloats(v[:]) }
func fmtVec4(v scene.Vec4) string { return fmtFloats(v[:]) }
func fmtBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// matrixHash hashes a 4x4 transform in row-major order.
func matrixHash(m scene.Matrix) string {
	vals := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			vals = append(vals, m[i][j])
		}
	}
	return sha256Hex(fmtFloats(vals))
}

// listHash hashes a "|"-joined string list. Callers sort first when
// order must not matter.
func listHash(values []string) string {
	return sha256Hex(strings.Join(values, "|"))
}
