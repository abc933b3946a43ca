// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides a GPU implementation of gpucore.Device on top of
// gogpu/wgpu/hal (Pure Go, Vulkan).
//
// WGSL modules are compiled by the hal backend through gogpu/naga; the CPU
// programs attached to a gpucore.ShaderModuleDesc are ignored. Texture
// usage states are tracked per texture and turned into hal texture
// barriers, so the layout transitions recorded by callers map one to one
// onto pipeline barriers.
//
// # Device Sharing
//
// A Device either owns its hal instance and device (New) or borrows them
// from a host application (NewFromProvider). A borrowed device is never
// destroyed by Close.
//
// # Build Tags
//
// The package is excluded with the nogpu build tag. Importing it registers
// the "wgpu" backend; the factory fails when no adapter is present, and
// backend.Default then falls back to software.
package wgpu
