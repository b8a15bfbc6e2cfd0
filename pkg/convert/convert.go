// Package convert implements SampleConverter: channel-layout
// upmix/downmix and integer format conversion. Sample-rate conversion is
// explicitly delegated to pkg/resample.
package convert

import (
	"encoding/binary"
	"math"

	"github.com/go-musicfox/audiocore/internal/errs"
	"github.com/go-musicfox/audiocore/pkg/frame"
)

// DownmixMatrix maps each output channel to a weighted sum of input
// channels. Row i, indexed by output channel i, gives one coefficient per
// input channel.
type DownmixMatrix [][]float32

// ITU775Matrix is the ITU-R BS.775 5.1-to-stereo downmix coefficients:
// L' = L + 0.707*C + 0.707*LS, R' = R + 0.707*C + 0.707*RS, LFE omitted.
// Input channel order is assumed L, R, C, LFE, LS, RS.
func ITU775Matrix() DownmixMatrix {
	const coef = 0.707
	return DownmixMatrix{
		{1, 0, coef, 0, coef, 0},
		{0, 1, coef, 0, 0, coef},
	}
}

// ToStereo downmixes src to 2 channels using matrix (defaulting to
// ITU775Matrix when src has 6 channels and matrix is nil), or upmixes a
// mono source by duplicating the single channel to both outputs.
func ToStereo(src *frame.Frame, matrix DownmixMatrix) (*frame.Frame, error) {
	if src == nil {
		return nil, errs.New(errs.InvalidArgument, "source frame is nil")
	}
	out, err := frame.Create(src.SampleRate(), 2, src.SampleCount(), src.Format(), src.Timestamp())
	if err != nil {
		return nil, err
	}

	switch src.ChannelCount() {
	case 1:
		for i := uint32(0); i < src.SampleCount(); i++ {
			v := src.Sample(0, i)
			out.SetSample(0, i, v)
			out.SetSample(1, i, v)
		}
		return out, nil
	case 2:
		for i := uint32(0); i < src.SampleCount(); i++ {
			out.SetSample(0, i, src.Sample(0, i))
			out.SetSample(1, i, src.Sample(1, i))
		}
		return out, nil
	}

	if matrix == nil {
		if src.ChannelCount() != 6 {
			return nil, errs.New(errs.FormatMismatch, "no downmix matrix supplied for non-5.1 source")
		}
		matrix = ITU775Matrix()
	}
	if len(matrix) != 2 {
		return nil, errs.New(errs.InvalidArgument, "downmix matrix must have exactly 2 output rows")
	}
	for i := uint32(0); i < src.SampleCount(); i++ {
		for outCh, row := range matrix {
			var sum float32
			for inCh, coef := range row {
				if coef == 0 || uint16(inCh) >= src.ChannelCount() {
					continue
				}
				sum += coef * src.Sample(uint16(inCh), i)
			}
			if src.Format() == frame.Float32 {
				// Float32 output keeps the full matrix sum, which can exceed
				// 1.0; SetSample would clamp it. Integer outputs saturate.
				off := (int(i)*2 + outCh) * 4
				binary.LittleEndian.PutUint32(out.Data()[off:off+4], math.Float32bits(sum))
				continue
			}
			out.SetSample(uint16(outCh), i, sum)
		}
	}
	return out, nil
}

// ConvertFormat deep-copies src with every sample re-encoded in
// targetFormat. Integer<->integer and integer<->float conversions are both
// linear scaling with saturation (clamped inside Frame.SetSample).
func ConvertFormat(src *frame.Frame, targetFormat frame.SampleFormat) (*frame.Frame, error) {
	if src == nil {
		return nil, errs.New(errs.InvalidArgument, "source frame is nil")
	}
	return src.CloneAs(targetFormat)
}
