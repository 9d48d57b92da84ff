// Package poll implements the client-side polling state machine that watches
// an upload until it reaches a terminal status.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linguavox/linguavox/internal/client"
)

// State is the observable state of a Poller.
type State string

const (
	// StateIdle means nothing is being tracked.
	StateIdle State = "idle"
	// StateAwaiting means a ticker is issuing status queries.
	StateAwaiting State = "awaiting"
	// StateDone means a terminal status was observed and rendered.
	StateDone State = "done"
)

// DefaultInterval is the default delay between status queries.
const DefaultInterval = 2 * time.Second

// StatusClient is the subset of the API client the poller needs.
type StatusClient interface {
	Status(ctx context.Context, id string) (*client.StatusResponse, error)
}

// Options groups dependencies for Poller.
type Options struct {
	Client     StatusClient                       // Required: status query client
	Interval   time.Duration                      // Optional: defaults to DefaultInterval
	OnTerminal func(resp *client.StatusResponse) // Optional: invoked once with the terminal status
	Logger     *slog.Logger                       // Optional: structured logger
}

// Poller tracks a single upload through repeated status queries. Cancelling
// never has server side effects: the upload keeps processing either way.
type Poller struct {
	client     StatusClient
	interval   time.Duration
	onTerminal func(resp *client.StatusResponse)
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	result *client.StatusResponse
}

// New constructs a new Poller.
func New(opts Options) (*Poller, error) {
	if opts.Client == nil {
		return nil, errors.New("StatusClient is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "poller")
	}

	return &Poller{
		client:     opts.Client,
		interval:   interval,
		onTerminal: opts.OnTerminal,
		logger:     logger,
		state:      StateIdle,
	}, nil
}

// State returns the current poller state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the terminal status once the poller is done, nil before.
func (p *Poller) Result() *client.StatusResponse {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Done returns a channel closed when tracking stops, either because a
// terminal status was observed or the poller was cancelled.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

// Track starts polling the given upload on the configured interval. The
// poller must be idle.
func (p *Poller) Track(ctx context.Context, id string) error {
	return p.start(ctx, id, false)
}

// Resume issues one immediate status query and, unless the upload already
// reached a terminal status, keeps polling. It never re-submits the upload.
func (p *Poller) Resume(ctx context.Context, id string) error {
	return p.start(ctx, id, true)
}

func (p *Poller) start(ctx context.Context, id string, immediate bool) error {
	p.mu.Lock()
	if p.state == StateAwaiting {
		p.mu.Unlock()
		return fmt.Errorf("already tracking; cancel first")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.state = StateAwaiting
	p.cancel = cancel
	p.result = nil
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go p.run(runCtx, id, immediate, done)
	return nil
}

// Cancel stops polling from any state. It is a no-op when idle.
func (p *Poller) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	if p.state == StateAwaiting {
		p.state = StateIdle
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (p *Poller) run(ctx context.Context, id string, immediate bool, done chan struct{}) {
	defer close(done)

	if immediate && p.queryOnce(ctx, id) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.state == StateAwaiting {
				p.state = StateIdle
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			if p.queryOnce(ctx, id) {
				return
			}
		}
	}
}

// queryOnce issues one status query. It returns true when a terminal status
// was observed and rendered. Transient query errors keep the poller awaiting;
// a failed query is never treated as an upload failure.
func (p *Poller) queryOnce(ctx context.Context, id string) bool {
	resp, err := p.client.Status(ctx, id)
	if err != nil {
		if p.logger != nil && !errors.Is(err, context.Canceled) {
			p.logger.DebugContext(ctx, "status query failed, retrying", "id", id, "error", err)
		}
		return false
	}

	if !resp.Terminal() {
		return false
	}

	p.mu.Lock()
	p.state = StateDone
	p.result = resp
	p.cancel = nil
	p.mu.Unlock()

	if p.onTerminal != nil {
		p.onTerminal(resp)
	}
	return true
}
