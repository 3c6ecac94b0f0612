package receivers

import (
	"context"
	"io"

	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/conductor"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventLogger writes every bus event it receives as one JSON line to a
// rotated file, for audit and replay by external tools.
type EventLogger struct {
	rec chan bork.BusMessage
	out *logrus.Logger
}

var _ bork.MessageSubscriber = EventLogger{}
var _ conductor.Service = EventLogger{}

func NewEventLogger(path string) EventLogger {
	return newEventLogger(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // MB
		MaxBackups: 10,
		Compress:   true,
	})
}

func newEventLogger(w io.Writer) EventLogger {
	out := logrus.New()
	out.SetOutput(w)
	out.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000Z07:00"})
	return EventLogger{rec: make(chan bork.BusMessage, 1000), out: out}
}

func (l EventLogger) GetChan() chan bork.BusMessage {
	return l.rec
}

func (l EventLogger) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		started <- true
		for {
			select {
			case <-stop:
				l.drain()
				close(stopped)
				return
			case msg := <-l.rec:
				l.write(msg)
			}
		}
	}()
	return nil
}

// drain writes whatever the bus delivered before shutdown.
func (l EventLogger) drain() {
	for {
		select {
		case msg := <-l.rec:
			l.write(msg)
		default:
			return
		}
	}
}

func (l EventLogger) write(msg bork.BusMessage) {
	l.out.WithFields(eventFields(msg)).Info(msg.EventType.Type() + ":" + msg.EventType.Name())
}

func eventFields(msg bork.BusMessage) logrus.Fields {
	return logrus.Fields{
		"id":      msg.ID,
		"type":    msg.EventType.Type(),
		"event":   msg.EventType.Name(),
		"payload": string(msg.Message),
	}
}

// SetupLoggers registers one EventLogger per configured [Loggers.<name>].
func SetupLoggers(cond *conductor.Conductor, bus bork.MessageBus, conf bork.Config) {
	log := logger.NewSublogger("receivers")
	for name, c := range conf.Loggers {
		if c.Path == "" {
			log.WithField("logger", name).Warn("event logger has no path, skipping")
			continue
		}
		l := NewEventLogger(c.Path)
		cond.Service("Event log "+name, l)
		bus.Register(l, eventTypes(log.WithField("logger", name), c.Types)...)
	}
}
