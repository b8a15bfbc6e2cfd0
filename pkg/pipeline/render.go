package pipeline

// Render is the device callback: driven by the OS audio thread, it fills
// buffer by reading frameCount*deviceChannels
// samples from DeviceFifo. It never allocates and never locks anything
// contended (fifo.Fifo.Read is lock-free). If fewer samples are available
// than requested, the remainder of buffer is padded with silence and
// Underruns is incremented.
//
// buffer must have length >= frameCount*deviceChannels; deviceChannels is
// the channel count the pipeline was configured with (Config.
// DeviceChannelCount). Render always returns frameCount, matching the
// render(...) -> samples_written contract.
func (p *Pipeline) Render(buffer []float32, frameCount int) int {
	deviceChannels := int(p.deviceChannelCount())
	want := frameCount * deviceChannels
	if len(buffer) < want {
		want = len(buffer)
	}

	n := p.fifo.Read(buffer[:want])
	if n < want {
		for i := n; i < want; i++ {
			buffer[i] = 0
		}
		missingFrames := (want - n) / maxInt(deviceChannels, 1)
		p.underruns.Add(uint64(missingFrames))
	}
	return frameCount
}

// deviceChannelCount reads cfg without taking p.mu, which ProcessAudioFrame
// and the worker hold while converting audio. cfg is written only by
// Initialize, before the pipeline leaves Uninitialized.
func (p *Pipeline) deviceChannelCount() uint16 {
	return p.cfg.DeviceChannelCount
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
