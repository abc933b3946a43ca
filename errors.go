package raytrace

import "errors"

// Errors returned by RayTracer.
var (
	// ErrNotInitialized is returned by operations that need a successful Init.
	ErrNotInitialized = errors.New("raytrace: not initialized")

	// ErrOutputNotReadable is returned by Render while the output image is
	// in the writable state, after a frame whose dispatch did not complete.
	ErrOutputNotReadable = errors.New("raytrace: output image not readable")

	// ErrNilRenderer is returned by Init when the tracer has no renderer.
	ErrNilRenderer = errors.New("raytrace: nil renderer")
)
