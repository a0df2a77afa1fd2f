// Package announce delivers operator-facing broadcast text (shutdown
// countdowns, cancellation notices, reset events) to configured sinks.
package announce

import (
	"golang.org/x/time/rate"

	logx "worldgate/pkg/logx"
)

// Sink receives global broadcast messages. Implementations must not block.
type Sink interface {
	Broadcast(msg string)
}

// LogSink writes broadcasts to the structured log, rate limited so a
// misbehaving caller cannot flood the sinks.
type LogSink struct {
	log logx.Logger
	lim *rate.Limiter
}

func NewLogSink(log logx.Logger, perSec int) *LogSink {
	if perSec <= 0 {
		perSec = 1
	}
	return &LogSink{
		log: log,
		lim: rate.NewLimiter(rate.Limit(perSec), perSec),
	}
}

func (s *LogSink) Broadcast(msg string) {
	if !s.lim.Allow() {
		return
	}
	s.log.Info("broadcast", logx.String("msg", msg))
}

// Multi fans one broadcast out to several sinks.
type Multi []Sink

func (m Multi) Broadcast(msg string) {
	for _, s := range m {
		if s != nil {
			s.Broadcast(msg)
		}
	}
}
