// Package launcher runs the long-lived components (HTTP server, poller
// loop, dispatcher loop) of a service under a single supervisor, the same
// role common/app.go's Launcher plays for the teacher's services.
package launcher

import (
	"context"
	"sync"

	"github.com/shiftpay/usdt-gateway/pkg/mlog"
)

// App is a long-running component started by a Launcher. Run must block
// until ctx is cancelled and return any error encountered along the way.
type App interface {
	Run(ctx context.Context) error
}

// Option configures a Launcher.
type Option func(l *Launcher)

// WithLogger attaches a logger used for lifecycle messages.
func WithLogger(logger mlog.Logger) Option {
	return func(l *Launcher) { l.logger = logger }
}

// Launcher runs a named set of Apps concurrently and blocks until ctx is
// cancelled, then waits for every App to return.
type Launcher struct {
	logger mlog.Logger
	apps   map[string]App
}

// New builds a Launcher.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		logger: mlog.NoneLogger{},
		apps:   make(map[string]App),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Add registers an App under name.
func (l *Launcher) Add(name string, a App) *Launcher {
	l.apps[name] = a
	return l
}

// Run starts every registered App in its own goroutine and blocks until ctx
// is cancelled and all of them have returned.
func (l *Launcher) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(len(l.apps))

	l.logger.Infof("launcher: starting %d app(s)", len(l.apps))

	for name, app := range l.apps {
		go func(name string, app App) {
			defer wg.Done()

			l.logger.Infof("launcher: app %q starting", name)

			if err := app.Run(ctx); err != nil {
				l.logger.Errorf("launcher: app %q exited with error: %v", name, err)
				return
			}

			l.logger.Infof("launcher: app %q finished", name)
		}(name, app)
	}

	wg.Wait()

	l.logger.Info("launcher: terminated")
}
