package raytrace

// Defaults.
const (
	// DefaultEpsilon is the minimum accepted hit distance.
	DefaultEpsilon float32 = 1e-4

	// DefaultFieldOfView is the vertical field of view in degrees.
	DefaultFieldOfView float32 = 60
)

// Option configures a RayTracer during creation.
//
// Example:
//
//	rt := raytrace.New(renderer,
//	    raytrace.WithBackground([4]float32{0.1, 0.1, 0.2, 1}),
//	    raytrace.WithFieldOfView(45),
//	)
type Option func(*options)

// options holds optional configuration for RayTracer creation.
type options struct {
	epsilon    float32
	background [4]float32
	fovDegrees float32
}

// defaultOptions returns the default tracer options.
func defaultOptions() options {
	return options{
		epsilon:    DefaultEpsilon,
		background: [4]float32{0, 0, 0, 1},
		fovDegrees: DefaultFieldOfView,
	}
}

// WithEpsilon sets the hit tolerance. Hits closer than eps along a ray are
// ignored, and shadow and reflection rays start eps off the surface.
// Non-positive values are ignored.
func WithEpsilon(eps float32) Option {
	return func(o *options) {
		if eps > 0 {
			o.epsilon = eps
		}
	}
}

// WithBackground sets the RGBA color written where a primary ray hits
// nothing. Default: opaque black.
func WithBackground(rgba [4]float32) Option {
	return func(o *options) {
		o.background = rgba
	}
}

// WithFieldOfView sets the vertical field of view in degrees. Values
// outside (0, 180) are ignored.
func WithFieldOfView(degrees float32) Option {
	return func(o *options) {
		if degrees > 0 && degrees < 180 {
			o.fovDegrees = degrees
		}
	}
}
