package receivers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	bork "github.com/dogecoinfoundation/borkbot/pkg"
	"github.com/dogecoinfoundation/borkbot/pkg/conductor"
	"github.com/dogecoinfoundation/borkbot/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	callbackMaxElapsed  = 2 * time.Minute
	callbackMaxInterval = 32 * time.Second
)

func NewCallbackSender(config bork.CallbackConfig) CallbackSender {
	return CallbackSender{
		Rec:        make(chan bork.BusMessage, 1000),
		Path:       config.Path,
		HMACSecret: config.HMACSecret,
		client:     resty.New().SetTimeout(30 * time.Second),
		log:        logger.NewSublogger("callbacks").WithField("path", config.Path),
	}
}

type CallbackSender struct {
	// incoming msgs
	Rec        chan bork.BusMessage
	Path       string
	HMACSecret string
	client     *resty.Client
	log        *logrus.Entry
}

// Implements bork.MessageSubscriber
func (s CallbackSender) GetChan() chan bork.BusMessage {
	return s.Rec
}

// Implements conductor.Service
func (s CallbackSender) Run(started, stopped chan bool, stop chan context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		started <- true
		for {
			select {
			// handle stopping the service
			case <-stop:
				cancel()
				close(stopped)
				return
			case msg := <-s.Rec:
				if err := s.post(ctx, msg); err != nil {
					s.log.WithError(err).WithField("event", msg.ID).Error("callback failed after retries")
				}
			}
		}
	}()
	return nil
}

// Reads config and sets up any configured callbacks
func SetupCallbacks(cond *conductor.Conductor, bus bork.MessageBus, conf bork.Config) {
	log := logger.NewSublogger("receivers")
	for name, c := range conf.Callbacks {
		s := NewCallbackSender(c)
		cond.Service(fmt.Sprintf("Callback sender for: %s", c.Path), s)
		bus.Register(s, eventTypes(log.WithField("callback", name), c.Types)...)
	}
}

func generateSha256HMAC(timestamp string, payload []byte, secret string) string {
	if secret == "" {
		return ""
	}
	dataToSign := []byte(fmt.Sprintf("%s.%s", timestamp, string(payload)))
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(dataToSign)
	return hex.EncodeToString(h.Sum(nil))
}

type callbackBody struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	ID      string          `json:"id"`
	Message json.RawMessage `json:"message"`
}

// post delivers one event, retrying with exponential backoff until a 2xx
// response or callbackMaxElapsed.
func (s CallbackSender) post(ctx context.Context, msg bork.BusMessage) error {
	body, err := json.Marshal(callbackBody{
		Type:    msg.EventType.Type(),
		Event:   msg.EventType.Name(),
		ID:      msg.ID,
		Message: msg.Message,
	})
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = callbackMaxInterval
	b.MaxElapsedTime = callbackMaxElapsed
	return backoff.RetryNotify(func() error {
		req := s.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(body)
		if s.HMACSecret != "" {
			timestamp := fmt.Sprintf("%d", time.Now().Unix())
			req.SetHeader("X-Bork-Signature", "sha256="+generateSha256HMAC(timestamp, body, s.HMACSecret))
			req.SetHeader("X-Bork-Timestamp", timestamp)
		}
		resp, err := req.Post(s.Path)
		if err != nil {
			return err
		}
		if resp.StatusCode() >= http.StatusBadRequest && resp.StatusCode() < http.StatusInternalServerError &&
			resp.StatusCode() != http.StatusTooManyRequests {
			return backoff.Permanent(fmt.Errorf("callback rejected: %s", resp.Status()))
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("callback status: %s", resp.Status())
		}
		return nil
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		s.log.WithError(err).WithField("retry_in", d).Warn("callback failed, retrying")
	})
}
