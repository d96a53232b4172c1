package container

import (
	"bytes"

	"github.com/goopsie/catpack/pkg/stream"
)

// Fuzz exercises ParseHeader and ParseFileBlock against arbitrary bytes,
// the two entry points that read attacker-controlled header fields before
// any bounds are known.
func Fuzz(data []byte) int {
	score := 0
	if r, err := stream.NewReader(bytes.NewReader(data)); err == nil {
		if _, err := ParseHeader(r, "fuzz"); err == nil {
			score = 1
		}
	}
	if r, err := stream.NewReader(bytes.NewReader(data)); err == nil {
		if _, err := ParseFileBlock(r, "fuzz"); err == nil {
			score = 1
		}
	}
	return score
}
