// ABOUTME: Application orchestration for the trigger engine
// ABOUTME: Loads samples, builds voices and runs input, remote and shutdown
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/maxmbed/sample-trig/internal/command"
	"github.com/maxmbed/sample-trig/internal/config"
	"github.com/maxmbed/sample-trig/internal/discovery"
	"github.com/maxmbed/sample-trig/internal/dispatch"
	"github.com/maxmbed/sample-trig/internal/remote"
	"github.com/maxmbed/sample-trig/internal/ui"
	"github.com/maxmbed/sample-trig/internal/version"
	"github.com/maxmbed/sample-trig/internal/voice"
	"github.com/maxmbed/sample-trig/pkg/audio/output"
	"github.com/maxmbed/sample-trig/pkg/audio/source"
	"golang.org/x/sync/errgroup"
)

// ChannelPrefix names the per-voice command channels
const ChannelPrefix = "/trigger"

var (
	// ErrNoSamples is returned when no sample paths are given
	ErrNoSamples = errors.New("no samples given")
	// ErrTooManySamples is returned when there are more samples than voices
	ErrTooManySamples = errors.New("too many samples")
)

// Options configures an Engine
type Options struct {
	Config *config.Config
	Paths  []string

	UseTUI bool
	// Input feeds trigger keys when the TUI is off; os.Stdin when nil
	Input io.Reader
	// OpenDevice overrides the configured output backend
	OpenDevice voice.OpenFunc
	// Name is the mDNS service name; hostname based when empty
	Name string
}

// Engine owns the voices and everything that drives them
type Engine struct {
	opts       Options
	cfg        *config.Config
	instanceID string

	ns     *command.Namespace
	voices []*voice.Voice
	disp   *dispatch.Dispatcher
}

// New loads every sample and builds one voice per sample. Nothing runs yet.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("missing configuration")
	}
	if len(opts.Paths) == 0 {
		return nil, ErrNoSamples
	}
	if len(opts.Paths) > cfg.MaxVoices {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManySamples, len(opts.Paths), cfg.MaxVoices)
	}

	open := opts.OpenDevice
	if open == nil {
		devCfg := cfg.Device
		open = func(channels int) (output.Device, error) {
			return output.Open(devCfg, channels)
		}
	}

	e := &Engine{
		opts:       opts,
		cfg:        cfg,
		instanceID: uuid.NewString(),
		ns:         command.NewNamespace(cfg.QueueDepth),
	}

	var (
		sources  []*source.Clip
		channels []*command.Channel
	)
	cleanup := func() {
		for _, src := range sources {
			src.Close()
		}
		for _, ch := range channels {
			ch.Close()
		}
	}

	for i, path := range opts.Paths {
		src, err := source.Open(path)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		sources = append(sources, src)

		ch, err := e.ns.Open(command.ChannelName(ChannelPrefix, i))
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("voice %d channel: %w", i, err)
		}
		channels = append(channels, ch)

		v, err := voice.New(i, ch, src, cfg.VoiceConfig(open))
		if err != nil {
			cleanup()
			return nil, err
		}
		e.voices = append(e.voices, v)
	}

	handles := make([]dispatch.Voice, len(e.voices))
	for i, v := range e.voices {
		handles[i] = v
	}
	disp, err := dispatch.New(handles, cfg.DispatchConfig())
	if err != nil {
		cleanup()
		return nil, err
	}
	e.disp = disp

	log.Printf("%s %s: %d voices (instance %s)", version.Product, version.Version, len(e.voices), e.instanceID)
	return e, nil
}

// Dispatcher returns the trigger dispatcher
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.disp }

// Voices returns the voices in index order
func (e *Engine) Voices() []*voice.Voice { return e.voices }

// InstanceID identifies this run
func (e *Engine) InstanceID() string { return e.instanceID }

// Snapshot returns the per-voice state shown by the TUI
func (e *Engine) Snapshot() []ui.VoiceStatus {
	out := make([]ui.VoiceStatus, len(e.voices))
	for i, v := range e.voices {
		key, _ := e.disp.KeyFor(i)
		stats := v.Stats()
		out[i] = ui.VoiceStatus{
			ID:         i,
			Key:        key,
			Name:       v.Name(),
			State:      v.State().String(),
			Sessions:   stats.Sessions,
			Retriggers: stats.Retriggers,
			Aborts:     stats.Aborts,
		}
	}
	return out
}

// startVoices launches every voice and waits for each device to open.
// Any failure shuts the whole group down.
func (e *Engine) startVoices() error {
	for _, v := range e.voices {
		v.Start()
	}

	var errs []error
	for _, v := range e.voices {
		if err := <-v.Ready(); err != nil {
			errs = append(errs, fmt.Errorf("voice %d: %w", v.ID(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}

	if err := e.disp.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run starts the voices and blocks until a quit is requested or ctx ends,
// then runs the group shutdown.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.startVoices(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	remoteAddr := ""
	if e.cfg.Port > 0 {
		srv := remote.NewServer(remote.Config{Port: e.cfg.Port, InstanceID: e.instanceID}, e.disp)
		g.Go(func() error {
			return srv.Run(gctx)
		})
		remoteAddr = fmt.Sprintf(":%d%s", e.cfg.Port, remote.Path)

		if e.cfg.MDNS {
			mgr := discovery.NewManager(discovery.Config{
				ServiceName: e.serviceName(),
				Port:        e.cfg.Port,
				Path:        remote.Path,
				InstanceID:  e.instanceID,
			})
			if err := mgr.Advertise(); err != nil {
				log.Printf("Failed to start mDNS advertisement: %v", err)
			}
			defer mgr.Stop()
		}
	}

	var prog interface{ Quit() }
	if e.opts.UseTUI {
		p := ui.NewProgram(ui.Config{
			Controls: e.disp,
			Snapshot: e.Snapshot,
			ExitKey:  e.disp.ExitKey(),
			Remote:   remoteAddr,
			Bounce:   e.cfg.BounceEnabled,
		})
		prog = p
		g.Go(func() error {
			_, err := p.Run()
			e.disp.RequestQuit()
			if err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		})
	} else {
		input := e.opts.Input
		if input == nil {
			input = os.Stdin
		}
		// Not in the group: a blocked terminal read cannot be interrupted
		go func() {
			if err := e.disp.ReadKeys(input); err != nil {
				log.Printf("Input: %v", err)
			}
		}()
	}

	select {
	case <-e.disp.Quit():
		log.Printf("Quit requested")
	case <-gctx.Done():
		log.Printf("Stopping: %v", context.Cause(gctx))
	}

	shutdownErr := e.disp.Shutdown()
	if prog != nil {
		prog.Quit()
	}
	cancel()

	groupErr := g.Wait()
	if errors.Is(groupErr, context.Canceled) {
		groupErr = nil
	}

	if err := errors.Join(shutdownErr, groupErr); err != nil {
		return err
	}
	log.Printf("All voices stopped")
	return nil
}

func (e *Engine) serviceName() string {
	if e.opts.Name != "" {
		return e.opts.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s", hostname, version.Product)
}
