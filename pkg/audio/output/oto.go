// ABOUTME: Oto-based audio output backend
// ABOUTME: Feeds each PCM device into its own player on a shared oto context
package output

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/maxmbed/sample-trig/pkg/audio"
)

// oto only allows one context per process, so every device shares it
var (
	otoOnce       sync.Once
	otoCtx        *oto.Context
	otoErr        error
	otoSampleRate int
)

const otoChannels = 2

func sharedOtoContext(sampleRate int, period time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: otoChannels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   period,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan

		otoCtx = ctx
		otoSampleRate = sampleRate
		log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, otoChannels)
	})

	if otoErr != nil {
		return nil, otoErr
	}
	if sampleRate != otoSampleRate {
		return nil, fmt.Errorf("oto context already running at %dHz, cannot open %dHz device",
			otoSampleRate, sampleRate)
	}
	return otoCtx, nil
}

// otoPlayer is the part of *oto.Player a sink drives
type otoPlayer interface {
	IsPlaying() bool
	Close() error
}

// otoSink plays one PCM through an oto player
type otoSink struct {
	player otoPlayer
	reader *pcmReader
	drain  time.Duration
}

func openOto(cfg Config, channels int) (Device, error) {
	if channels > otoChannels {
		return nil, fmt.Errorf("oto backend supports up to %d channels, got %d", otoChannels, channels)
	}

	periodTime := time.Duration(cfg.PeriodFrames) * time.Second / time.Duration(cfg.SampleRate)
	ctx, err := sharedOtoContext(cfg.SampleRate, periodTime)
	if err != nil {
		return nil, err
	}

	pcm := newPCM(cfg, channels)
	reader := newPCMReader(pcm, cfg.PeriodFrames)
	player := ctx.NewPlayer(reader)
	player.SetBufferSize(cfg.PeriodFrames * otoChannels * audio.BytesPerSample)
	player.Play()

	pcm.attach(&otoSink{player: player, reader: reader, drain: cfg.RingTime()})
	log.Printf("Output %s: opened %dch period=%d periods=%d", pcm, channels, cfg.PeriodFrames, cfg.Periods)
	return pcm, nil
}

func (s *otoSink) close() error {
	// The reader pads with silence, so the player only stops once it
	// sees EOF and has played what it buffered
	s.reader.stop()
	deadline := time.Now().Add(s.drain)
	for s.player.IsPlaying() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return s.player.Close()
}

// pcmReader adapts a PCM to the io.Reader oto pulls from. It never
// returns short: missing frames are played as silence.
type pcmReader struct {
	pcm     *PCM
	scratch []int16
	stereo  []int16

	mu      sync.Mutex
	stopped bool
}

func newPCMReader(p *PCM, period int) *pcmReader {
	return &pcmReader{
		pcm:     p,
		scratch: make([]int16, period*p.channels),
		stereo:  make([]int16, period*otoChannels),
	}
}

func (r *pcmReader) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *pcmReader) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0, io.EOF
	}

	frameBytes := otoChannels * audio.BytesPerSample
	frames := min(len(b)/frameBytes, len(r.stereo)/otoChannels)
	if frames == 0 {
		return 0, nil
	}

	out := r.stereo[:frames*otoChannels]
	if r.pcm.channels == 1 {
		got := r.pcm.pull(r.scratch[:frames])
		audio.MonoToStereo(out, r.scratch[:got])
		clear(out[got*otoChannels:])
	} else {
		got := r.pcm.pull(out)
		clear(out[got*otoChannels:])
	}

	return audio.PutInt16LE(b, out), nil
}
