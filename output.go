package raytrace

import (
	"fmt"

	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/internal/kernel"
)

// Output image size. Fixed regardless of the presentation surface.
const (
	OutputWidth  = 256
	OutputHeight = 256
)

// outputState mirrors the usage the device last left the output texture in.
type outputState uint8

const (
	// outputReadable: sampled-texture usage, the presenter may read it.
	outputReadable outputState = iota
	// outputWritable: storage usage, or unknown after a failed frame.
	outputWritable
)

func (s outputState) String() string {
	if s == outputReadable {
		return "readable"
	}
	return "writable"
}

// output is the kernel's target image. The kernel writes it through the
// storage binding in group 1; the presenter reads it through readView,
// which is only handed out in the readable state.
type output struct {
	dev   gpucore.Device
	tex   gpucore.TextureID
	view  gpucore.TextureViewID
	group gpucore.BindGroupID
	state outputState
}

// create allocates the texture and its compute bind group and leaves it
// readable.
func (o *output) create(dev gpucore.Device, layout gpucore.BindGroupLayoutID) error {
	o.dev = dev
	var err error
	o.tex, err = dev.CreateTexture(&gpucore.TextureDesc{
		Label:  "raytrace_output",
		Width:  OutputWidth,
		Height: OutputHeight,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage: gpucore.TextureUsageStorageBinding |
			gpucore.TextureUsageTextureBinding |
			gpucore.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output texture: %w", err)
	}
	if o.view, err = dev.CreateTextureView(o.tex, "raytrace_output_view"); err != nil {
		o.release()
		return fmt.Errorf("create output view: %w", err)
	}
	o.group, err = dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   "raytrace_output_group",
		Layout:  layout,
		Entries: []gpucore.BindGroupEntry{{Binding: kernel.BindingOutput, TextureView: o.view}},
	})
	if err != nil {
		o.release()
		return fmt.Errorf("create output bind group: %w", err)
	}

	enc, err := dev.BeginCommands("raytrace_output_init")
	if err != nil {
		o.release()
		return err
	}
	enc.TransitionTexture(o.tex, gpucore.TextureUsageUndefined, gpucore.TextureUsageTextureBinding)
	if err := enc.Submit(); err != nil {
		o.release()
		return fmt.Errorf("transition output: %w", err)
	}
	o.state = outputReadable
	return nil
}

// beginWrite records the readable-to-writable transition.
func (o *output) beginWrite(enc gpucore.CommandEncoder) {
	enc.TransitionTexture(o.tex, gpucore.TextureUsageTextureBinding, gpucore.TextureUsageStorageBinding)
	o.state = outputWritable
}

// endWrite records the writable-to-readable transition. The state only
// becomes readable once the command stream is submitted.
func (o *output) endWrite(enc gpucore.CommandEncoder) {
	enc.TransitionTexture(o.tex, gpucore.TextureUsageStorageBinding, gpucore.TextureUsageTextureBinding)
}

// submitted marks a successful submission of a beginWrite/endWrite pair.
func (o *output) submitted() { o.state = outputReadable }

// readView returns the view the presenter samples.
func (o *output) readView() (gpucore.TextureViewID, error) {
	if o.state != outputReadable {
		return gpucore.InvalidID, fmt.Errorf("%w: state %s", ErrOutputNotReadable, o.state)
	}
	return o.view, nil
}

// recreate replaces a texture left in an unknown state by a failed frame.
func (o *output) recreate(layout gpucore.BindGroupLayoutID) error {
	dev := o.dev
	o.release()
	return o.create(dev, layout)
}

func (o *output) release() {
	if o.dev == nil {
		return
	}
	if o.group != gpucore.InvalidID {
		o.dev.DestroyBindGroup(o.group)
	}
	if o.view != gpucore.InvalidID {
		o.dev.DestroyTextureView(o.view)
	}
	if o.tex != gpucore.InvalidID {
		o.dev.DestroyTexture(o.tex)
	}
	o.tex, o.view, o.group = gpucore.InvalidID, gpucore.InvalidID, gpucore.InvalidID
	o.state = outputWritable
}
