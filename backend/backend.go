package backend

import (
	"errors"

	"github.com/gogpu/raytrace/gpucore"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU software device.
	BackendSoftware = "software"

	// BackendWGPU is the name of the Pure Go GPU device (gogpu/wgpu).
	BackendWGPU = "wgpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or could not open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// DeviceFactory opens a new device. It returns an error when the backend
// is compiled in but cannot run here (no adapter, no driver).
type DeviceFactory func() (gpucore.Device, error)
