package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/maxmbed/sample-trig/pkg/audio"
	"github.com/mewkiz/flac"
)

// LoadFLAC decodes a FLAC file into a Clip, narrowing samples to 16 bits
func LoadFLAC(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("%w: %s is %d-bit FLAC", ErrUnsupportedFormat, path, bitDepth)
	}

	data := make([]int16, 0, int(info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode FLAC frame: %w", err)
		}
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				data = append(data, audio.SampleToInt16(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return NewClip(clipName(path), audio.Format{
		Codec:      "flac",
		SampleRate: int(info.SampleRate),
		Channels:   channels,
		BitDepth:   16,
	}, data), nil
}
