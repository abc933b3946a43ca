// Package backend selects the GPU device the ray tracer runs on.
//
// Device backends register themselves from init() functions and are
// selected at runtime. Import the backends you want compiled in:
//
//	import (
//	    _ "github.com/gogpu/raytrace/backend/software"
//	    _ "github.com/gogpu/raytrace/backend/wgpu"
//	)
//
// # Backend Selection
//
// Use Default to open the best available device, or Get to request a
// specific backend by name:
//
//	// wgpu when a GPU adapter is present, software otherwise
//	dev, err := backend.Default(logger)
//
//	// Or request a specific backend
//	dev, err := backend.Get(backend.BackendSoftware)
package backend
