package blink

import "github.com/pkg/errors"

// ErrNotFound is returned for device IDs the store has no facade for
var ErrNotFound = errors.New("device not found")
