//go:build alsa

// ABOUTME: ALSA audio output backend using libasound directly
// ABOUTME: Maps the device interface onto snd_pcm playback calls
package output

/*
#cgo LDFLAGS: -lasound
#include <alsa/asoundlib.h>
#include <stdlib.h>

static snd_pcm_t* openPCM(const char* device, int* err) {
    snd_pcm_t* handle = NULL;
    *err = snd_pcm_open(&handle, device, SND_PCM_STREAM_PLAYBACK, 0);
    return handle;
}

static int setupPCM(snd_pcm_t* handle, unsigned int channels, unsigned int* rate,
                    snd_pcm_uframes_t* period, snd_pcm_uframes_t* buffer) {
    snd_pcm_hw_params_t* params;
    int err;

    snd_pcm_hw_params_alloca(&params);
    err = snd_pcm_hw_params_any(handle, params);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_access(handle, params, SND_PCM_ACCESS_RW_INTERLEAVED);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_format(handle, params, SND_PCM_FORMAT_S16_LE);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_channels(handle, params, channels);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_rate_near(handle, params, rate, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_period_size_near(handle, params, period, 0);
    if (err < 0) return err;

    err = snd_pcm_hw_params_set_buffer_size_near(handle, params, buffer);
    if (err < 0) return err;

    err = snd_pcm_hw_params(handle, params);
    if (err < 0) return err;

    snd_pcm_hw_params_get_period_size(params, period, 0);
    snd_pcm_hw_params_get_buffer_size(params, buffer);
    return snd_pcm_prepare(handle);
}

static int writePCM(snd_pcm_t* handle, short* buffer, int frames) {
    return snd_pcm_writei(handle, buffer, frames);
}

static void closePCM(snd_pcm_t* handle) {
    if (handle != NULL) {
        snd_pcm_drain(handle);
        snd_pcm_close(handle);
    }
}
*/
import "C"

import (
	"fmt"
	"log"
	"sync"
	"unsafe"
)

// ALSA drives a libasound playback handle
type ALSA struct {
	handle      *C.snd_pcm_t
	name        string
	sampleRate  int
	channels    int
	period      int
	waitTimeout int // milliseconds

	mu    sync.Mutex
	stats Stats
}

func alsaError(err C.int) string {
	return C.GoString(C.snd_strerror(err))
}

func openALSA(cfg Config, channels int) (Device, error) {
	name := C.CString(cfg.Name)
	defer C.free(unsafe.Pointer(name))

	var cerr C.int
	handle := C.openPCM(name, &cerr)
	if cerr < 0 {
		return nil, fmt.Errorf("open %q PCM device: %s", cfg.Name, alsaError(cerr))
	}

	rate := C.uint(cfg.SampleRate)
	period := C.snd_pcm_uframes_t(cfg.PeriodFrames)
	buffer := C.snd_pcm_uframes_t(cfg.PeriodFrames * cfg.Periods)
	if cerr = C.setupPCM(handle, C.uint(channels), &rate, &period, &buffer); cerr < 0 {
		C.closePCM(handle)
		return nil, fmt.Errorf("set %q hardware parameters: %s", cfg.Name, alsaError(cerr))
	}

	a := &ALSA{
		handle:      handle,
		name:        cfg.Name,
		sampleRate:  int(rate),
		channels:    channels,
		period:      int(period),
		waitTimeout: int(cfg.WaitTimeout.Milliseconds()),
	}
	log.Printf("Output alsa/%s: opened %dch rate=%d period=%d buffer=%d",
		a.name, channels, a.sampleRate, a.period, int(buffer))
	return a, nil
}

func (a *ALSA) PeriodFrames() int { return a.period }
func (a *ALSA) SampleRate() int   { return a.sampleRate }
func (a *ALSA) Channels() int     { return a.channels }

func (a *ALSA) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *ALSA) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return Unconfigured
	}
	switch C.snd_pcm_state(a.handle) {
	case C.SND_PCM_STATE_PREPARED:
		return Prepared
	case C.SND_PCM_STATE_RUNNING, C.SND_PCM_STATE_DRAINING:
		return Running
	case C.SND_PCM_STATE_XRUN:
		return XRun
	case C.SND_PCM_STATE_SUSPENDED:
		return Suspended
	default:
		return Unconfigured
	}
}

func (a *ALSA) WaitForRoom() error {
	a.mu.Lock()
	handle := a.handle
	a.mu.Unlock()
	if handle == nil {
		return ErrClosed
	}

	ret := C.snd_pcm_wait(handle, C.int(a.waitTimeout))
	switch {
	case ret == 0:
		return fmt.Errorf("%w: alsa/%s after %dms", ErrTimeout, a.name, a.waitTimeout)
	case ret == -C.EPIPE || ret == -C.ESTRPIPE:
		// Write recovers these
		return nil
	case ret < 0:
		return fmt.Errorf("wait pcm device: %s", alsaError(ret))
	}
	return nil
}

func (a *ALSA) Write(block []int16) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	frames := len(block) / a.channels
	if a.handle == nil || frames == 0 {
		return 0
	}

	ptr := (*C.short)(unsafe.Pointer(&block[0]))
	ret := C.writePCM(a.handle, ptr, C.int(frames))
	if ret == -C.EPIPE {
		log.Printf("Output alsa/%s: write pcm device: over/under run", a.name)
		a.stats.Underruns++
		C.snd_pcm_prepare(a.handle)
		a.stats.Recoveries++
		ret = C.writePCM(a.handle, ptr, C.int(frames))
	}
	if ret < 0 {
		log.Printf("Output alsa/%s: write pcm device: %s", a.name, alsaError(ret))
		C.snd_pcm_recover(a.handle, ret, 0)
		a.stats.Recoveries++
		return 0
	}

	a.stats.FramesWritten += int64(ret)
	return int(ret)
}

func (a *ALSA) DropPending() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return ErrClosed
	}

	if ret := C.snd_pcm_drop(a.handle); ret < 0 {
		return fmt.Errorf("drop pcm pending samples: %s", alsaError(ret))
	}
	a.stats.Drops++
	if ret := C.snd_pcm_prepare(a.handle); ret < 0 {
		return fmt.Errorf("prepare pcm device: %s", alsaError(ret))
	}
	return nil
}

func (a *ALSA) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle == nil {
		return ErrClosed
	}
	C.closePCM(a.handle)
	a.handle = nil
	return nil
}
