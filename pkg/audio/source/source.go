// ABOUTME: Pre-loaded sound sources for voice playback
// ABOUTME: Opens WAV, MP3 and FLAC files into in-memory 16-bit clips
package source

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxmbed/sample-trig/pkg/audio"
)

// ErrUnsupportedFormat is returned when a file is not a sub-format the engine can play
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source provides interleaved 16-bit frames from a sound file.
// A Source is owned by a single voice and is not safe for concurrent use.
type Source interface {
	// Format returns the stream format (always 16-bit)
	Format() audio.Format
	// Frames returns the total frame count
	Frames() int
	// ReadBlock fills dst with up to len(dst)/channels frames and returns
	// the number of frames read. A short read means end of stream.
	ReadBlock(dst []int16) int
	// Rewind moves the cursor back to frame 0
	Rewind()
	// Position returns the cursor in frames
	Position() int
	// Close releases the source
	Close() error
}

// Clip is a fully decoded sound held in memory with a playback cursor
type Clip struct {
	name   string
	format audio.Format
	data   []int16
	pos    int
	closed bool
}

// NewClip wraps interleaved samples. Trailing samples that do not form a
// whole frame are dropped.
func NewClip(name string, format audio.Format, data []int16) *Clip {
	if format.Channels <= 0 {
		format.Channels = 1
	}
	format.BitDepth = 16
	whole := len(data) - len(data)%format.Channels
	return &Clip{
		name:   name,
		format: format,
		data:   data[:whole],
	}
}

func (c *Clip) Name() string          { return c.name }
func (c *Clip) Format() audio.Format  { return c.format }
func (c *Clip) Frames() int           { return len(c.data) / c.format.Channels }
func (c *Clip) Position() int         { return c.pos }
func (c *Clip) Rewind()               { c.pos = 0 }
func (c *Clip) Samples() []int16      { return c.data }
func (c *Clip) Remaining() int        { return c.Frames() - c.pos }
func (c *Clip) SetPosition(frame int) { c.pos = max(0, min(frame, c.Frames())) }

func (c *Clip) ReadBlock(dst []int16) int {
	if c.closed {
		return 0
	}
	ch := c.format.Channels
	want := len(dst) / ch
	n := min(want, c.Remaining())
	copy(dst, c.data[c.pos*ch:(c.pos+n)*ch])
	c.pos += n
	return n
}

func (c *Clip) Close() error {
	c.closed = true
	c.data = nil
	c.pos = 0
	return nil
}

// Open loads a sound file, choosing the decoder from the file extension
func Open(path string) (*Clip, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var (
		clip *Clip
		err  error
	)
	switch ext {
	case ".wav", ".wave":
		clip, err = LoadWAV(path)
	case ".mp3":
		clip, err = LoadMP3(path)
	case ".flac":
		clip, err = LoadFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .wav, .mp3, .flac)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Loaded %s: %s (%d frames)", clip.name, clip.format, clip.Frames())
	return clip, nil
}

func clipName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
