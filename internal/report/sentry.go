// Package report forwards unexpected failures to Sentry. Without a DSN every
// call is a no-op.
package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Setup initializes the global Sentry client. An empty dsn leaves reporting
// disabled but still valid to call.
func Setup(dsn, env, release string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		EnableTracing:    false,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	ConfigureScope(env, release)
	return nil
}

// Flush waits up to two seconds for buffered events to be delivered.
func Flush() bool {
	return sentry.Flush(2 * time.Second)
}
