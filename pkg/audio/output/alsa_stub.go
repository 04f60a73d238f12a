//go:build !alsa

// ABOUTME: ALSA stub when libasound is not linked in
// ABOUTME: Provides compile-time placeholder for builds without the alsa tag
package output

import (
	"fmt"
)

func openALSA(cfg Config, channels int) (Device, error) {
	return nil, fmt.Errorf("ALSA support not enabled (build with -tags alsa)")
}
