// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/raytrace/gpucore"
)

// ErrInvalidSize is returned for a surface with a non-positive dimension.
var ErrInvalidSize = errors.New("render: invalid surface size")

// Surface is a device texture that presentation passes draw into.
//
// It stands in for a window swap-chain image: render passes target its
// view and Snapshot reads it back for headless use.
//
// Example:
//
//	s, err := render.NewSurface(dev, 800, 600)
//	...
//	img, err := s.Snapshot()
type Surface struct {
	dev    gpucore.Device
	tex    gpucore.TextureID
	view   gpucore.TextureViewID
	width  int
	height int
}

// NewSurface creates an RGBA8 surface on dev.
func NewSurface(dev gpucore.Device, width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	tex, err := dev.CreateTexture(&gpucore.TextureDesc{
		Label:  "surface",
		Width:  uint32(width),  //nolint:gosec // checked positive
		Height: uint32(height), //nolint:gosec // checked positive
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage: gpucore.TextureUsageRenderAttachment |
			gpucore.TextureUsageCopySrc |
			gpucore.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create surface: %w", err)
	}
	view, err := dev.CreateTextureView(tex, "surface_view")
	if err != nil {
		dev.DestroyTexture(tex)
		return nil, fmt.Errorf("render: create surface view: %w", err)
	}
	return &Surface{dev: dev, tex: tex, view: view, width: width, height: height}, nil
}

// Width returns the surface width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the surface height in pixels.
func (s *Surface) Height() int { return s.height }

// Texture returns the surface texture.
func (s *Surface) Texture() gpucore.TextureID { return s.tex }

// View returns the view render passes target.
func (s *Surface) View() gpucore.TextureViewID { return s.view }

// Snapshot reads the surface back into a new image.
func (s *Surface) Snapshot() (*image.RGBA, error) {
	if s.tex == gpucore.InvalidID {
		return nil, errors.New("render: surface destroyed")
	}
	return s.dev.ReadTexture(s.tex)
}

// Destroy releases the surface texture. Safe to call twice.
func (s *Surface) Destroy() {
	if s.tex == gpucore.InvalidID {
		return
	}
	s.dev.DestroyTextureView(s.view)
	s.dev.DestroyTexture(s.tex)
	s.tex, s.view = gpucore.InvalidID, gpucore.InvalidID
}
