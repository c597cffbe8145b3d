package motorgate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// output is one digital line. Set(true) drives the ESC enable active.
type output interface {
	Set(on bool) error
	Close() error
}

var openLineFn = openLine

// Enabler reports whether propulsion may run.
type Enabler interface {
	MotorsEnabled() bool
}

type Config struct {
	Chip      string
	Line      int
	ActiveLow bool
	// Interval is how often the gate re-reads the supervisor.
	Interval time.Duration
}

type Snapshot struct {
	Enabled   bool   `json:"enabled"`
	Changes   uint64 `json:"changes"`
	LastError string `json:"last_error,omitempty"`
}

// Gate drives the ESC enable line from the supervisor's motor output flag.
// The line starts inactive and returns to inactive on Close.
type Gate struct {
	cfg Config
	src Enabler
	log *logrus.Entry

	mu   sync.Mutex
	out  output
	snap Snapshot

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config, src Enabler, log *logrus.Entry) (*Gate, error) {
	if src == nil {
		return nil, fmt.Errorf("motorgate: source is nil")
	}
	if cfg.Line < 0 {
		return nil, fmt.Errorf("motorgate: invalid line %d", cfg.Line)
	}
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Millisecond
	}
	if log == nil {
		log = logrus.WithField("component", "motorgate")
	}
	out, err := openLineFn(cfg.Chip, cfg.Line, cfg.ActiveLow)
	if err != nil {
		return nil, err
	}
	return &Gate{cfg: cfg, src: src, log: log, out: out, stopCh: make(chan struct{})}, nil
}

func (g *Gate) Start(ctx context.Context) {
	g.log.WithFields(logrus.Fields{"chip": g.cfg.Chip, "line": g.cfg.Line}).Info("motor gate started")
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		tick := time.NewTicker(g.cfg.Interval)
		defer tick.Stop()
		for {
			g.Apply()
			select {
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			case <-tick.C:
			}
		}
	}()
}

// Apply copies the current enable flag to the line when it changed.
func (g *Gate) Apply() {
	want := g.src.MotorsEnabled()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out == nil || want == g.snap.Enabled {
		return
	}
	if err := g.out.Set(want); err != nil {
		if g.snap.LastError == "" {
			g.log.WithError(err).Error("motor gate write failed")
		}
		g.snap.LastError = err.Error()
		return
	}
	g.snap.Enabled = want
	g.snap.Changes++
	g.snap.LastError = ""
	g.log.WithField("enabled", want).Warn("motor gate changed")
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Close stops polling, drives the line inactive and releases it.
func (g *Gate) Close() error {
	var err error
	g.stopOnce.Do(func() {
		close(g.stopCh)
		g.wg.Wait()

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.out == nil {
			return
		}
		_ = g.out.Set(false)
		g.snap.Enabled = false
		err = g.out.Close()
		g.out = nil
	})
	return err
}
