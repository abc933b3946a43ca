// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/raytrace/gpucore"
)

func openDevice(t *testing.T) *Device {
	t.Helper()
	d, err := New()
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestTextureUsageConversion(t *testing.T) {
	tests := []struct {
		in   gpucore.TextureUsage
		want gputypes.TextureUsage
	}{
		{gpucore.TextureUsageUndefined, 0},
		{gpucore.TextureUsageCopySrc, gputypes.TextureUsageCopySrc},
		{gpucore.TextureUsageStorageBinding, gputypes.TextureUsageStorageBinding},
		{
			gpucore.TextureUsageTextureBinding | gpucore.TextureUsageRenderAttachment,
			gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
		},
	}
	for _, tt := range tests {
		if got := textureUsage(tt.in); got != tt.want {
			t.Errorf("textureUsage(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLayoutEntry(t *testing.T) {
	e := layoutEntry(gpucore.BindGroupLayoutEntry{
		Binding:    3,
		Type:       gpucore.BindingTypeReadOnlyStorageBuffer,
		Visibility: gpucore.ShaderStageCompute,
	})
	if e.Binding != 3 || e.Buffer == nil || e.Buffer.Type != gputypes.BufferBindingTypeReadOnlyStorage {
		t.Errorf("storage entry = %+v", e)
	}
	if e.Visibility != gputypes.ShaderStageCompute {
		t.Errorf("visibility = %v", e.Visibility)
	}

	e = layoutEntry(gpucore.BindGroupLayoutEntry{Type: gpucore.BindingTypeStorageTexture})
	if e.StorageTexture == nil || e.Buffer != nil {
		t.Errorf("storage texture entry = %+v", e)
	}
	e = layoutEntry(gpucore.BindGroupLayoutEntry{Type: gpucore.BindingTypeSampler})
	if e.Sampler == nil {
		t.Errorf("sampler entry = %+v", e)
	}
}

func TestUnpackRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	raw := make([]byte, 2*rowAlignment)
	copy(raw, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(raw[rowAlignment:], []byte{9, 10, 11, 12, 13, 14, 15, 16})

	unpackRows(img, raw, rowAlignment, true)
	if got := img.RGBAAt(0, 0); got != (color.RGBA{3, 2, 1, 4}) {
		t.Errorf("(0,0) = %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{15, 14, 13, 16}) {
		t.Errorf("(1,1) = %v", got)
	}
}

func TestAlignUp(t *testing.T) {
	for _, tt := range []struct{ v, want uint32 }{{0, 0}, {1, 256}, {256, 256}, {257, 512}, {1024, 1024}} {
		if got := alignUp(tt.v, rowAlignment); got != tt.want {
			t.Errorf("alignUp(%d) = %d, want %d", tt.v, got, tt.want)
		}
	}
}

func TestNewFromProvider_NotHAL(t *testing.T) {
	if _, err := NewFromProvider(nil); !errors.Is(err, ErrNotHAL) {
		t.Errorf("err = %v, want ErrNotHAL", err)
	}
}

func TestDevice_TransitionTracking(t *testing.T) {
	d := openDevice(t)
	tex, err := d.CreateTexture(&gpucore.TextureDesc{
		Label:  "tracked",
		Width:  4,
		Height: 4,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.TextureUsageStorageBinding | gpucore.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatal(err)
	}

	enc, err := d.BeginCommands("transition")
	if err != nil {
		t.Fatal(err)
	}
	enc.TransitionTexture(tex, gpucore.TextureUsageUndefined, gpucore.TextureUsageStorageBinding)
	if u, _ := d.TextureUsage(tex); u != gpucore.TextureUsageUndefined {
		t.Errorf("usage before submit = %s", u)
	}
	if err := enc.Submit(); err != nil {
		t.Fatal(err)
	}
	if u, _ := d.TextureUsage(tex); u != gpucore.TextureUsageStorageBinding {
		t.Errorf("usage after submit = %s", u)
	}

	enc, err = d.BeginCommands("mismatch")
	if err != nil {
		t.Fatal(err)
	}
	enc.TransitionTexture(tex, gpucore.TextureUsageUndefined, gpucore.TextureUsageCopySrc)
	if err := enc.Submit(); !errors.Is(err, ErrUsageMismatch) {
		t.Errorf("Submit() err = %v, want ErrUsageMismatch", err)
	}

	img, err := d.ReadTexture(tex)
	if err != nil {
		t.Fatal(err)
	}
	if img.Rect.Dx() != 4 || img.Rect.Dy() != 4 {
		t.Errorf("readback size = %v", img.Rect)
	}
	if u, _ := d.TextureUsage(tex); u != gpucore.TextureUsageStorageBinding {
		t.Errorf("usage after readback = %s", u)
	}
}

func TestDevice_WriteBufferBounds(t *testing.T) {
	d := openDevice(t)
	id, err := d.CreateBuffer(&gpucore.BufferDesc{Label: "small", Size: 8, Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteBuffer(id, 4, make([]byte, 8)); err == nil {
		t.Error("overflowing write succeeded")
	}
	if err := d.WriteBuffer(id, 0, make([]byte, 8)); err != nil {
		t.Errorf("WriteBuffer() = %v", err)
	}
}

func TestDevice_Closed(t *testing.T) {
	d := openDevice(t)
	d.Close()
	if _, err := d.BeginCommands("late"); !errors.Is(err, gpucore.ErrDeviceClosed) {
		t.Errorf("err = %v, want ErrDeviceClosed", err)
	}
	d.Close()
}

func TestDevice_RetireWaitsForPendingWork(t *testing.T) {
	tests := []struct {
		name    string
		pending int
		wantNow int
	}{
		{"idle", 0, 1},
		{"one in flight", 1, 0},
		{"several in flight", 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Device{pending: make([]inflight, tt.pending)}
			freed := 0
			d.retireLocked(func() { freed++ })
			if freed != tt.wantNow {
				t.Fatalf("freed = %d right after retire, want %d", freed, tt.wantNow)
			}
			if tt.pending == 0 {
				return
			}
			for i := range tt.pending - 1 {
				if n := len(d.pending[i].retired); n != 0 {
					t.Errorf("submission %d holds %d frees, want 0", i, n)
				}
			}
			last := &d.pending[tt.pending-1]
			last.finish()
			if freed != 1 {
				t.Errorf("freed = %d after the newest fence, want 1", freed)
			}
			last.finish()
			if freed != 1 {
				t.Errorf("freed = %d after a second finish, want 1", freed)
			}
		})
	}
}

func TestDevice_DestroyWhileInFlight(t *testing.T) {
	d := openDevice(t)
	buf, err := d.CreateBuffer(&gpucore.BufferDesc{Label: "retired", Size: 16, Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := d.BeginCommands("in_flight")
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Submit(); err != nil {
		t.Fatal(err)
	}
	d.DestroyBuffer(buf)
	if err := d.WriteBuffer(buf, 0, make([]byte, 4)); !errors.Is(err, gpucore.ErrUnknownResource) {
		t.Errorf("WriteBuffer() after destroy err = %v, want ErrUnknownResource", err)
	}
	// Close waits for the submission and runs the deferred free.
	d.Close()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) != 0 {
		t.Errorf("%d submissions still pending after Close", len(d.pending))
	}
}
