package conductor

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// StartupTimeout is how long each service has to report ready.
func StartupTimeout(d time.Duration) func(*Conductor) {
	return func(c *Conductor) {
		c.startTimeout = d
	}
}

// ShutdownTimeout bounds the whole shutdown.
func ShutdownTimeout(d time.Duration) func(*Conductor) {
	return func(c *Conductor) {
		c.stopTimeout = d
	}
}

// Noisy logs every start and stop.
func Noisy() func(*Conductor) {
	return func(c *Conductor) {
		c.noisy = true
	}
}

// HookSignals stops the Conductor on SIGINT or SIGTERM.
func HookSignals() func(*Conductor) {
	return func(c *Conductor) {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			defer signal.Stop(sigs)
			select {
			case sig := <-sigs:
				c.log.Warnf("caught %v, shutting down", sig)
				c.Stop()
			case <-c.done:
			}
		}()
	}
}
