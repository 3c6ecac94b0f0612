package receivers

import (
	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/conductor"
	"github.com/sirupsen/logrus"
)

// Sets up standard receivers.
func SetUpReceivers(cond *conductor.Conductor, bus bork.MessageBus, conf bork.Config) {
	// Set up configured loggers
	SetupLoggers(cond, bus, conf)

	// Set up configured Callbacks
	SetupCallbacks(cond, bus, conf)
}

// eventTypes maps configured category names ("ALL", "MSG", "SYS") to
// EventTypes, skipping unknown names.
func eventTypes(log *logrus.Entry, names []string) []bork.EventType {
	types := []bork.EventType{}
	for _, t := range names {
		match := false
		for _, x := range bork.EVENT_TYPES {
			if t == x.Type() {
				match = true
				types = append(types, x)
			}
		}
		if !match {
			log.Warnf("ignoring invalid event type: %s", t)
		}
	}
	return types
}
