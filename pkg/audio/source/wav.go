package source

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
	"github.com/maxmbed/sample-trig/pkg/audio"
)

const wavFormatPCM = 1

// LoadWAV decodes a 16-bit PCM WAV file into a Clip
func LoadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrUnsupportedFormat, path)
	}
	if decoder.WavAudioFormat != wavFormatPCM || decoder.BitDepth != 16 {
		return nil, fmt.Errorf("%w: %s is WAV format %d at %d bits, need 16-bit PCM",
			ErrUnsupportedFormat, path, decoder.WavAudioFormat, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV: %w", err)
	}

	data := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		data[i] = audio.Clamp16(s)
	}

	return NewClip(clipName(path), audio.Format{
		Codec:      "wav",
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   16,
	}, data), nil
}
