package raytrace

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/raytrace/internal/abi"
	"github.com/gogpu/raytrace/internal/kernel"
)

// Workgroup grid covering the output image.
const (
	groupsX = (OutputWidth + kernel.WorkgroupSize - 1) / kernel.WorkgroupSize
	groupsY = (OutputHeight + kernel.WorkgroupSize - 1) / kernel.WorkgroupSize
)

// Run ray-traces the scene into the output image.
//
// It rebuilds the scene buffers if the scene changed, uploads the camera
// and the parameters, and submits one command stream that moves the output
// image to the writable state, dispatches the kernel over every pixel and
// moves the image back to the readable state. Run does not wait for the
// device to finish.
//
// A failed scene upload leaves the previous buffers in place and is
// retried by the next Run. Any failure after Init skips the frame: it is
// counted in Stats.SkippedFrames and logged at warn.
func (rt *RayTracer) Run() error {
	if !rt.ready {
		return ErrNotInitialized
	}

	if err := rt.updateBuffers(); err != nil {
		return rt.skipFrame(fmt.Errorf("raytrace: %w", err))
	}

	cam := abi.NewCamera(rt.view.Resolve(), mgl32.DegToRad(rt.opts.fovDegrees), float32(OutputWidth)/float32(OutputHeight))
	if err := rt.dev.WriteBuffer(rt.cameraBuf, 0, abi.Encode(&cam)); err != nil {
		return rt.skipFrame(fmt.Errorf("raytrace: upload camera: %w", err))
	}
	params := abi.NewParams(rt.opts.epsilon, rt.opts.background, rt.scene.Counts())
	if err := rt.dev.WriteBuffer(rt.paramsBuf, 0, abi.Encode(&params)); err != nil {
		return rt.skipFrame(fmt.Errorf("raytrace: upload params: %w", err))
	}

	if rt.out.state != outputReadable {
		// A previous frame failed mid-stream; the device state of the
		// texture is unknown.
		if err := rt.out.recreate(rt.outputLayout); err != nil {
			return rt.skipFrame(fmt.Errorf("raytrace: reset output: %w", err))
		}
	}

	enc, err := rt.dev.BeginCommands("raytrace")
	if err != nil {
		return rt.skipFrame(fmt.Errorf("raytrace: begin commands: %w", err))
	}
	rt.out.beginWrite(enc)
	pass := enc.BeginComputePass("raytrace")
	pass.SetPipeline(rt.pipeline)
	pass.SetBindGroup(0, rt.sceneGroup)
	pass.SetBindGroup(1, rt.out.group)
	pass.Dispatch(groupsX, groupsY, 1)
	pass.End()
	rt.out.endWrite(enc)

	if err := enc.Submit(); err != nil {
		return rt.skipFrame(fmt.Errorf("raytrace: dispatch: %w", err))
	}
	rt.out.submitted()
	rt.stats.Dispatches++
	Logger().Debug("raytrace: dispatched", "groups", [3]int{groupsX, groupsY, 1}, "counts", rt.scene.Counts())
	return nil
}

// skipFrame counts a Run that failed after Init and logs it at warn.
func (rt *RayTracer) skipFrame(err error) error {
	rt.stats.SkippedFrames++
	Logger().Warn("raytrace: frame skipped", "err", err)
	return err
}
