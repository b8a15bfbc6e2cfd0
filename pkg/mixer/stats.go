package mixer

// Stats is a point-in-time snapshot of mixer statistics, safe to copy by
// value.
type Stats struct {
	SamplesProcessed uint64
	ClippingEvents   uint64
	PeakLeft         float32
	PeakRight        float32
	RMSLeft          float32
	RMSRight         float32
	ActiveChannels   int
}
