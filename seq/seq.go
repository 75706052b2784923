// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package seq has byte-level helpers for ASCII DNA sequences: case cleaning,
// reverse complement, N padding and one-hot encoding.
package seq

import (
	"github.com/grailbio/base/simd"
	gunsafe "github.com/grailbio/base/unsafe"
)

// NumChannels is the width of a one-hot encoded base.
const NumChannels = 4

var (
	cleanTable   [256]byte
	revCompTable [256]byte
	channelTable [256]int8
)

func init() {
	for i := range cleanTable {
		cleanTable[i] = 'N'
		revCompTable[i] = 'N'
		channelTable[i] = -1
	}
	for ch, pair := range [...][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}} {
		b, comp := pair[0], pair[1]
		lower := b + ('a' - 'A')
		cleanTable[b], cleanTable[lower] = b, b
		revCompTable[b], revCompTable[lower] = comp, comp
		channelTable[b], channelTable[lower] = int8(ch), int8(ch)
	}
}

// CleanInplace capitalizes acgt and replaces everything outside ACGT with 'N'.
func CleanInplace(ascii8 []byte) {
	for i, b := range ascii8 {
		ascii8[i] = cleanTable[b]
	}
}

// Clean returns a capitalized copy of s with non-ACGT bases replaced by 'N'.
func Clean(s string) string {
	buf := []byte(s)
	CleanInplace(buf)
	return gunsafe.BytesToString(buf)
}

// ReverseComplementInplace reverse-complements ascii8.  'A'/'a' maps to 'T',
// 'C'/'c' to 'G', 'G'/'g' to 'C', 'T'/'t' to 'A', and everything else to 'N'.
func ReverseComplementInplace(ascii8 []byte) {
	n := len(ascii8)
	for i, j := 0, n-1; i < n>>1; i, j = i+1, j-1 {
		ascii8[i], ascii8[j] = revCompTable[ascii8[j]], revCompTable[ascii8[i]]
	}
	if n&1 == 1 {
		ascii8[n>>1] = revCompTable[ascii8[n>>1]]
	}
}

// ReverseComplement returns the reverse complement of s.  For a sequence over
// ACGTN, ReverseComplement(ReverseComplement(s)) == s.
func ReverseComplement(s string) string {
	buf := []byte(s)
	ReverseComplementInplace(buf)
	return gunsafe.BytesToString(buf)
}

// Pad returns s with left 'N's prepended and right 'N's appended.
func Pad(s string, left, right int) string {
	if left <= 0 && right <= 0 {
		return s
	}
	if left < 0 {
		left = 0
	}
	if right < 0 {
		right = 0
	}
	n := left + len(s) + right
	buf := make([]byte, n)
	if left > 0 {
		simd.Memset8(buf[:left:left], 'N')
	}
	copy(buf[left:], s)
	if right > 0 {
		simd.Memset8(buf[n-right:n:n], 'N')
	}
	return gunsafe.BytesToString(buf)
}

// OneHot encodes s as a row-major (len(s), 4) matrix with channels in A, C,
// G, T order.  Any other base, including 'N', encodes as an all-zero row.
func OneHot(s string) []float32 {
	dst := make([]float32, len(s)*NumChannels)
	OneHotInto(dst, s)
	return dst
}

// OneHotInto is OneHot that writes into dst, which must have length
// len(s)*4.  dst is fully overwritten.
func OneHotInto(dst []float32, s string) {
	if len(dst) != len(s)*NumChannels {
		panic("seq.OneHotInto: len(dst) != 4*len(s)")
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < len(s); i++ {
		if ch := channelTable[s[i]]; ch >= 0 {
			dst[i*NumChannels+int(ch)] = 1
		}
	}
}

// Decode is the inverse of OneHot.  All-zero rows decode to 'N'.
func Decode(onehot []float32) string {
	buf := make([]byte, len(onehot)/NumChannels)
	for i := range buf {
		buf[i] = 'N'
		for ch, base := range [...]byte{'A', 'C', 'G', 'T'} {
			if onehot[i*NumChannels+ch] != 0 {
				buf[i] = base
				break
			}
		}
	}
	return gunsafe.BytesToString(buf)
}
