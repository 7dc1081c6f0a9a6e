package logging

import (
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource kinds reported at startup.
const (
	ResourceDynamoTable = "dynamoTables"
	ResourceSSMParam    = "ssmParams"
	ResourceEventBus    = "eventBuses"
)

// StartupLogger gathers what a process was wired to and emits it as one
// "Startup complete" event.
type StartupLogger struct {
	name       string
	start      time.Time
	commitHash string

	resources map[string]map[string]string
	features  map[string]bool
	config    map[string]string
}

// NewStartupLogger creates a StartupLogger for the named entry point. The
// reported init duration is measured from start.
func NewStartupLogger(name string, start time.Time) *StartupLogger {
	return &StartupLogger{
		name:      name,
		start:     start,
		resources: map[string]map[string]string{},
		features:  map[string]bool{},
		config:    map[string]string{},
	}
}

// CommitHash sets the commit the binary was built from.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// Resource registers a named external resource under kind.
func (s *StartupLogger) Resource(kind, label, name string) *StartupLogger {
	if s.resources[kind] == nil {
		s.resources[kind] = map[string]string{}
	}
	s.resources[kind][label] = name
	return s
}

func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	return s.Resource(ResourceDynamoTable, label, name)
}

// SSMParam registers a parameter path. Values are never logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.Resource(ResourceSSMParam, label, path)
}

func (s *StartupLogger) EventBus(label, name string) *StartupLogger {
	return s.Resource(ResourceEventBus, label, name)
}

// Feature registers a boolean flag.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-secret setting.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// EnvOrDefault returns $envVar, or defaultVal when it is empty.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits the startup event on the global logger.
func (s *StartupLogger) Log() {
	s.LogTo(log.Logger)
}

// LogTo emits the startup event on l.
func (s *StartupLogger) LogTo(l zerolog.Logger) {
	evt := l.Info().Dict("process", s.process())

	if len(s.resources) > 0 {
		d := zerolog.Dict()
		for _, kind := range sortedKeys(s.resources) {
			d = d.Dict(kind, strDict(s.resources[kind]))
		}
		evt = evt.Dict("resources", d)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for _, k := range sortedKeys(s.features) {
			d = d.Bool(k, s.features[k])
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", strDict(s.config))
	}
	if !s.start.IsZero() {
		evt = evt.Dur("initDuration", time.Since(s.start))
	}
	evt.Msg("Startup complete")
}

func (s *StartupLogger) process() *zerolog.Event {
	d := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.commitHash != "" {
		d = d.Str("commitHash", s.commitHash)
	}
	// Lambda runtime identity
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		d = d.Str("functionName", fn).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION"))
	}
	return d
}

func strDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d = d.Str(k, m[k])
	}
	return d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
