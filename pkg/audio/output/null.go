// ABOUTME: Headless audio output backend
// ABOUTME: Consumes one period per period-time so pacing matches real hardware
package output

import (
	"log"
	"time"
)

type nullSink struct {
	done    chan struct{}
	stopped chan struct{}
}

func openNull(cfg Config, channels int) (Device, error) {
	pcm := newPCM(cfg, channels)
	s := &nullSink{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	pcm.attach(s)

	periodTime := time.Duration(cfg.PeriodFrames) * time.Second / time.Duration(cfg.SampleRate)
	go s.run(pcm, periodTime)

	log.Printf("Output %s: opened %dch period=%d periods=%d", pcm, channels, cfg.PeriodFrames, cfg.Periods)
	return pcm, nil
}

func (s *nullSink) run(p *PCM, periodTime time.Duration) {
	defer close(s.stopped)

	ticker := time.NewTicker(periodTime)
	defer ticker.Stop()

	buf := make([]int16, p.period*p.channels)
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			p.pull(buf)
		}
	}
}

func (s *nullSink) close() error {
	close(s.done)
	<-s.stopped
	return nil
}
