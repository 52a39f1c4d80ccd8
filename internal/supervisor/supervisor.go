// Package supervisor builds the suture tree the long-running commands run
// their services under.
package supervisor

import (
	"github.com/jmehdipour/leadsync/internal/config"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// New returns a root supervisor with every service added to it. Zero
// config values fall back to suture's defaults.
func New(name string, c config.SupervisorConfig, log *zap.Logger, services ...suture.Service) *suture.Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	spec := suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
	root := suture.New(name, spec)
	for _, svc := range services {
		root.Add(svc)
	}
	return root
}

func eventHook(log *zap.Logger) suture.EventHook {
	return func(e suture.Event) {
		fields := make([]zap.Field, 0, len(e.Map())+1)
		fields = append(fields, zap.Int("event_type", int(e.Type())))
		for k, v := range e.Map() {
			fields = append(fields, zap.Any(k, v))
		}
		log.Warn(e.String(), fields...)
	}
}
