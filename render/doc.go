// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render provides an offscreen presentation renderer.
//
// Offscreen owns what a window renderer would own for presenting a
// texture: a surface to draw into, a textured-triangle pipeline, linear
// and nearest samplers, and a uniform buffer holding the world, view and
// projection transforms. Callers bind the shader and sampler, set
// transforms and record draws against RenderTarget.
//
// # Usage
//
//	dev, _ := backend.Default(logger)
//	r, err := render.NewOffscreen(dev, render.WithSize(800, 600))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	// ... draw into r.RenderTarget() ...
//
//	img, err := r.Snapshot()
//
// # Textured pipeline
//
// Vertices are position.xy followed by uv, VertexStride bytes each. The
// shader source is shaders/textured.wgsl; devices that execute on the CPU
// run an equivalent program that maps each triangle from texture space
// with an affine transform.
package render
