package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/maxmbed/sample-trig/pkg/audio"
)

// LoadMP3 decodes an MP3 file into a stereo Clip
func LoadMP3(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	// MP3 decoder outputs stereo int16 little-endian
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	data := make([]int16, len(raw)/2)
	for i := range data {
		data[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	return NewClip(clipName(path), audio.Format{
		Codec:      "mp3",
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		BitDepth:   16,
	}, data), nil
}
