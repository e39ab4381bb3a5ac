// Package testutil provides shared test doubles and fixtures for tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/png"
)

// GeneratorStub is a canned image generator for tests. It records the
// last prompt and reference it was asked for.
type GeneratorStub struct {
	ConfiguredFlag bool
	Bytes          []byte
	Err            error

	LastPrompt    string
	LastReference []byte
	Calls         int
}

// Configured reports the canned configuration state.
func (g *GeneratorStub) Configured() bool {
	return g.ConfiguredFlag
}

// Generate returns the canned bytes or error.
func (g *GeneratorStub) Generate(_ context.Context, prompt string, reference []byte) ([]byte, error) {
	g.Calls++
	g.LastPrompt = prompt
	g.LastReference = reference
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Bytes, nil
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
