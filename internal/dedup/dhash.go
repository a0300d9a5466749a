// Package dedup implements perceptual-hash duplicate suppression for
// extracted video frames. Frames are fingerprinted with a 64-bit difference
// hash (9x8 grayscale grid, per-row adjacent-pixel comparisons) and
// compared by Hamming distance against the hashes already accepted for the
// same asset.
package dedup

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"os"

	"github.com/corona10/goimagehash"
)

// DefaultThreshold is the maximum Hamming distance at which two frames are
// considered duplicates. Lower values let more near-duplicates through as
// unique.
const DefaultThreshold = 5

// Hash computes the 64-bit difference hash of an encoded image. The grid
// dimensions and grayscale conversion are contractual: a different hash
// function breaks duplicate detection within a run.
func Hash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return HashImage(img)
}

// HashImage computes the difference hash of a decoded image.
func HashImage(img image.Image) (uint64, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("compute dhash: %w", err)
	}
	return h.GetHash(), nil
}

// HashFile computes the difference hash of an image file on disk.
func HashFile(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read frame %s: %w", path, err)
	}
	return Hash(data)
}

// HammingDistance returns the number of differing bits between two hashes,
// in [0, 64].
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
