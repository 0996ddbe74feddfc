// Package dedup implements the two-tier duplicate detector for fetched news
// items: an exact content fingerprint over normalized text, a MinHash
// signature over character shingles, and a banded LSH index that bounds the
// candidate set for similarity comparison.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"groundwire/internal/model"
)

const (
	// DefaultShingleLength is the character k-gram width for similarity shingles.
	DefaultShingleLength = 3
	// SignatureLength mirrors the fixed signature width on stored articles.
	SignatureLength = model.SignatureLength

	// emptySlot marks a signature position no shingle ever hashed into.
	emptySlot = math.MaxUint32
)

// ErrSignatureLength reports a similarity comparison between signatures of
// different lengths. Signatures are only comparable when produced by the same
// hash-function count, so this is a programming error, never coerced.
var ErrSignatureLength = errors.New("minhash signatures have different lengths")

// NormalizeText lower-cases, trims, collapses whitespace runs to single
// spaces, and drops control runes. Hashing and shingling both operate on this
// form, so any input that normalizes identically fingerprints identically.
func NormalizeText(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// ContentHash returns the lower-hex SHA-256 digest of the normalized text.
// Used for exact duplicate detection only.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// Shingles returns the set of all contiguous rune substrings of length k in
// the normalized text. Normalized text shorter than k yields the whole string
// as the single shingle; empty text yields an empty set. Repeated shingles
// count once.
func Shingles(text string, k int) map[string]struct{} {
	if k <= 0 {
		k = DefaultShingleLength
	}

	normalized := NormalizeText(text)
	if normalized == "" {
		return map[string]struct{}{}
	}

	runes := []rune(normalized)
	if len(runes) < k {
		return map[string]struct{}{normalized: {}}
	}

	set := make(map[string]struct{}, len(runes)-k+1)
	for i := 0; i <= len(runes)-k; i++ {
		set[string(runes[i:i+k])] = struct{}{}
	}
	return set
}

// MinHashSignature computes a numHashes-length signature: position i holds the
// minimum of hash_i over every shingle in the set, where hash_i is FNV-1a over
// the shingle suffixed with "_" and the function index. The result is
// deterministic for a given shingle set. An empty set still yields a
// full-length signature of sentinel values.
func MinHashSignature(shingles map[string]struct{}, numHashes int) []uint32 {
	if numHashes <= 0 {
		numHashes = SignatureLength
	}

	sig := make([]uint32, numHashes)
	for i := range sig {
		sig[i] = emptySlot
	}

	for shingle := range shingles {
		for i := 0; i < numHashes; i++ {
			if h := hashShingle(shingle, i); h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// SignatureFor is the common path: shingle with the default width, then sign
// with the fixed signature length.
func SignatureFor(text string) []uint32 {
	return MinHashSignature(Shingles(text, DefaultShingleLength), SignatureLength)
}

// Jaccard estimates the Jaccard similarity of the shingle sets behind two
// MinHash signatures as the fraction of agreeing positions. It fails hard on
// a length mismatch rather than coercing.
func Jaccard(a, b []uint32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrSignatureLength, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}

	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a)), nil
}

func hashShingle(shingle string, index int) uint32 {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(shingle))
	_, _ = hasher.Write([]byte{'_'})
	_, _ = hasher.Write([]byte(strconv.Itoa(index)))
	return hasher.Sum32()
}
