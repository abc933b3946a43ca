// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/raytrace/gpucore"
)

func bufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	var out gputypes.BufferUsage
	if u&gpucore.BufferUsageMapRead != 0 {
		out |= gputypes.BufferUsageMapRead
	}
	if u&gpucore.BufferUsageCopySrc != 0 {
		out |= gputypes.BufferUsageCopySrc
	}
	if u&gpucore.BufferUsageCopyDst != 0 {
		out |= gputypes.BufferUsageCopyDst
	}
	if u&gpucore.BufferUsageVertex != 0 {
		out |= gputypes.BufferUsageVertex
	}
	if u&gpucore.BufferUsageUniform != 0 {
		out |= gputypes.BufferUsageUniform
	}
	if u&gpucore.BufferUsageStorage != 0 {
		out |= gputypes.BufferUsageStorage
	}
	return out
}

// textureUsage converts usage flags. The undefined state converts to the
// empty mask, which hal maps to an undefined image layout.
func textureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&gpucore.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&gpucore.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&gpucore.TextureUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&gpucore.TextureUsageStorageBinding != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u&gpucore.TextureUsageRenderAttachment != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

func textureFormat(f gpucore.TextureFormat) gputypes.TextureFormat {
	if f == gpucore.TextureFormatBGRA8Unorm {
		return gputypes.TextureFormatBGRA8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func vertexFormat(f gpucore.VertexFormat) gputypes.VertexFormat {
	if f == gpucore.VertexFormatFloat32x4 {
		return gputypes.VertexFormatFloat32x4
	}
	return gputypes.VertexFormatFloat32x2
}

func layoutEntry(e gpucore.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{Binding: e.Binding}
	if e.Visibility&gpucore.ShaderStageVertex != 0 {
		out.Visibility |= gputypes.ShaderStageVertex
	}
	if e.Visibility&gpucore.ShaderStageFragment != 0 {
		out.Visibility |= gputypes.ShaderStageFragment
	}
	if e.Visibility&gpucore.ShaderStageCompute != 0 {
		out.Visibility |= gputypes.ShaderStageCompute
	}
	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case gpucore.BindingTypeStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case gpucore.BindingTypeSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	case gpucore.BindingTypeSampledTexture:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingTypeStorageTexture:
		out.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessWriteOnly,
			Format:        gputypes.TextureFormatRGBA8Unorm,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	}
	return out
}

func barrier(tex hal.Texture, from, to gpucore.TextureUsage) hal.TextureBarrier {
	return hal.TextureBarrier{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: textureUsage(from),
			NewUsage: textureUsage(to),
		},
	}
}
