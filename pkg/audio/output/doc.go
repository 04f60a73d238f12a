// ABOUTME: Audio output package for per-voice playback devices
// ABOUTME: Provides the Device interface with oto, null and ALSA backends
// Package output provides blocking PCM playback devices.
//
// A Device follows the ALSA playback state machine: it is opened in the
// PREPARED state, starts RUNNING on the first write, falls into XRUN when
// the consumer runs dry and is brought back to PREPARED by the next write
// or by DropPending. Writers pace themselves with WaitForRoom.
//
// Backends:
//   - oto: cross-platform playback through a shared oto context
//   - null: real-time clocked consumer with no audible output
//   - alsa: direct libasound access (build with -tags alsa)
//
// Example:
//
//	dev, err := output.Open(output.DefaultConfig(), 2)
//	if err := dev.WaitForRoom(); err == nil {
//	    dev.Write(block)
//	}
//	dev.Close()
package output
