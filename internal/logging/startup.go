package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger emits a single structured event describing how a Lambda was
// configured at cold start.
type StartupLogger struct {
	name      string
	startedAt time.Time
	resources map[string]string
	features  map[string]bool
	config    map[string]string
}

func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		startedAt: time.Now(),
		resources: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// Resource registers an AWS resource (queue URL, cluster, table) by label.
func (s *StartupLogger) Resource(label, id string) *StartupLogger {
	s.resources[label] = id
	return s
}

func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration value.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

func (s *StartupLogger) Log() {
	s.event(log.Logger.Info()).Msg("Lambda cold start")
}

func (s *StartupLogger) event(e *zerolog.Event) *zerolog.Event {
	e = e.
		Str("lambda", s.name).
		Str("goVersion", runtime.Version()).
		Str("region", os.Getenv("AWS_REGION")).
		Dur("initDuration", time.Since(s.startedAt))
	if len(s.resources) > 0 {
		d := zerolog.Dict()
		for k, v := range s.resources {
			d.Str(k, v)
		}
		e = e.Dict("resources", d)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d.Bool(k, v)
		}
		e = e.Dict("features", d)
	}
	if len(s.config) > 0 {
		d := zerolog.Dict()
		for k, v := range s.config {
			d.Str(k, v)
		}
		e = e.Dict("config", d)
	}
	return e
}
