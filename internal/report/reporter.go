package report

import (
	"os"
	"runtime"

	"github.com/getsentry/sentry-go"
)

// ConfigureScope sets global Sentry scope tags for the runtime and host.
func ConfigureScope(env, version string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("env", env)
		scope.SetTag("app_version", version)
		scope.SetTag("go_version", runtime.Version())
		scope.SetTag("goarch", runtime.GOARCH)
		scope.SetContext("host_info", map[string]interface{}{
			"hostname": hostname(),
		})
	})
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// Options carries optional data attached to a reported error.
type Options struct {
	Extra map[string]interface{}
	Tags  map[string]string
	Level sentry.Level
}

// Error reports err at sentry.LevelError. A nil error is ignored.
func Error(err error) *sentry.EventID {
	return ErrorWithOptions(err, Options{})
}

// ErrorWithOptions reports err with tags, extra context and level.
func ErrorWithOptions(err error, opts Options) *sentry.EventID {
	if err == nil {
		return nil
	}

	level := opts.Level
	if level == "" {
		level = sentry.LevelError
	}

	var id *sentry.EventID
	sentry.WithScope(func(scope *sentry.Scope) {
		if opts.Extra != nil {
			scope.SetContext("extra", opts.Extra)
		}
		for k, v := range opts.Tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(level)
		id = sentry.CaptureException(err)
	})
	return id
}
