package mqtt

import (
	"bytes"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DefaultImageDistance is the average hash distance from which a
// thumbnail counts as a new picture
const DefaultImageDistance = 5

// imageGate lets a camera image through only when its hash is at least
// distance away from the last one let through.  A zero distance means
// DefaultImageDistance.
type imageGate struct {
	distance int

	mu   sync.Mutex
	prev *goimagehash.ImageHash
}

func newImageGate(distance int) *imageGate {
	if distance < 1 {
		distance = DefaultImageDistance
	}
	return &imageGate{distance: distance}
}

func (g *imageGate) Changed(data []byte) (bool, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return false, errors.Wrap(err, "decoding image")
	}

	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		return false, errors.Wrap(err, "hashing image")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.prev == nil {
		g.prev = hash
		return true, nil
	}

	distance, err := g.prev.Distance(hash)
	if err != nil {
		return false, errors.Wrap(err, "comparing images")
	}
	if distance < g.distance {
		return false, nil
	}

	g.prev = hash
	return true, nil
}
