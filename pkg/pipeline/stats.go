package pipeline

// Stats is a point-in-time pipeline statistics snapshot.
type Stats struct {
	FramesProcessed  uint64
	SamplesProcessed uint64
	Underruns        uint64
	Overruns         uint64
	DecodeErrors     uint64
	CPUPercent       float64
	ActiveChannels   int
	MasterGainDB     float32
	MasterMuted      bool
}
