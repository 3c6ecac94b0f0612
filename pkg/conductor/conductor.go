package conductor

import (
	"context"
	"sync"
	"time"

	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	defaultStartTimeout = 5 * time.Second
	defaultStopTimeout  = 5 * time.Second
)

// Service is anything the Conductor runs. Run must not block: it sends on
// started once ready, then waits for a context on stop, finishes before
// that context's deadline and signals stopped (send or close).
type Service interface {
	Run(started, stopped chan bool, stop chan context.Context) error
}

type State string

const (
	Pending  State = "pending"
	Starting State = "starting"
	Running  State = "running"
	Failed   State = "failed"
	Stopping State = "stopping"
	Stopped  State = "stopped"
)

// ServiceStatus is one row of States().
type ServiceStatus struct {
	Name  string `json:"name"`
	State State  `json:"state"`
}

type managed struct {
	name    string
	service Service
	state   State
	started chan bool
	stopped chan bool
	stop    chan context.Context
}

// Conductor starts services in the order they were added and stops them in
// reverse, so a service may rely on everything added before it.
type Conductor struct {
	mu           sync.Mutex
	services     []*managed
	begun        bool
	stopping     bool
	noisy        bool
	startTimeout time.Duration
	stopTimeout  time.Duration
	done         chan bool
	stopOnce     sync.Once
	log          *logrus.Entry
}

// NewConductor accepts option funcs (see options.go).
func NewConductor(opts ...func(*Conductor)) *Conductor {
	c := &Conductor{
		startTimeout: defaultStartTimeout,
		stopTimeout:  defaultStopTimeout,
		done:         make(chan bool),
		log:          logger.NewSublogger("conductor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service adds a named service. Panics once Start has been called.
func (c *Conductor) Service(name string, service Service) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.begun {
		panic("conductor: Service called after Start")
	}
	c.services = append(c.services, &managed{
		name:    name,
		service: service,
		state:   Pending,
		started: make(chan bool, 1),
		stopped: make(chan bool, 1),
		stop:    make(chan context.Context, 1),
	})
}

// Start runs each service and waits for it to report ready before the
// next. A failure or timeout stops everything already running. The
// returned channel is closed once every service has stopped.
func (c *Conductor) Start() chan bool {
	c.mu.Lock()
	c.begun = true
	services := append([]*managed{}, c.services...)
	c.mu.Unlock()

	for _, m := range services {
		if c.isStopping() {
			break
		}
		c.verbose("starting %s", m.name)
		c.setState(m, Starting)
		if err := m.service.Run(m.started, m.stopped, m.stop); err != nil {
			c.setState(m, Failed)
			c.log.WithError(err).Errorf("%s failed to start", m.name)
			c.Stop()
			break
		}
		select {
		case <-m.started:
			c.setState(m, Running)
			c.verbose("%s running", m.name)
			continue
		case <-time.After(c.startTimeout):
			c.log.Errorf("%s did not start within %s", m.name, c.startTimeout)
			c.Stop()
		}
		break
	}
	return c.done
}

// Stop shuts services down, last started first. Safe to call more than
// once and from any goroutine.
func (c *Conductor) Stop() {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
	go c.stopOnce.Do(c.shutdown)
}

func (c *Conductor) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *Conductor) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), c.stopTimeout)
	defer cancel()

	c.mu.Lock()
	services := append([]*managed{}, c.services...)
	c.mu.Unlock()

	for i := len(services) - 1; i >= 0; i-- {
		m := services[i]
		if st := c.state(m); st != Starting && st != Running {
			continue
		}
		c.setState(m, Stopping)
		c.verbose("stopping %s", m.name)
		m.stop <- ctx
		select {
		case <-m.stopped:
			c.setState(m, Stopped)
			c.verbose("%s stopped", m.name)
		case <-ctx.Done():
			c.log.Warnf("%s did not stop in time", m.name)
		}
	}
	c.log.Info("shutdown complete")
	close(c.done)
}

// States reports every service in the order it was added.
func (c *Conductor) States() []ServiceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ServiceStatus, 0, len(c.services))
	for _, m := range c.services {
		out = append(out, ServiceStatus{Name: m.name, State: m.state})
	}
	return out
}

func (c *Conductor) state(m *managed) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return m.state
}

func (c *Conductor) setState(m *managed, s State) {
	c.mu.Lock()
	m.state = s
	c.mu.Unlock()
}

func (c *Conductor) verbose(format string, args ...any) {
	if c.noisy {
		c.log.Infof(format, args...)
	}
}
