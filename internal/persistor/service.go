package persistor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nerrad567/kairos-persistor/internal/infrastructure/mqtt"
)

// ErrServiceStopped is returned for messages that arrive after Stop.
var ErrServiceStopped = errors.New("persistor: service stopped")

// Bus is the message bus the Service listens on.
// *mqtt.Client satisfies it through an adapter in main.go.
type Bus interface {
	// Subscribe registers a handler for a topic.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Dispatcher executes commands. *Router implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) Result
}

// ServiceOptions holds configuration for creating a Service.
type ServiceOptions struct {
	// Address is the bus endpoint name; commands arrive on "<address>/command".
	Address string

	// QoS is used for the command subscription and for replies.
	QoS byte

	// Bus is the message bus implementation.
	Bus Bus

	// Dispatcher executes decoded commands.
	Dispatcher Dispatcher

	// Logger is optional; defaults to a no-op logger.
	Logger Logger
}

// ServiceStats counts bus traffic.
type ServiceStats struct {
	Received       uint64 `json:"received"`
	Replied        uint64 `json:"replied"`
	Invalid        uint64 `json:"invalid"`
	ReplyFailures  uint64 `json:"reply_failures"`
	CommandTopic   string `json:"command_topic"`
	SubscriptionUp bool   `json:"subscribed"`
}

// Service connects the bus to a Dispatcher: it decodes each command
// envelope, dispatches it and publishes the result as the reply.
//
// Messages are handled concurrently; no ordering is kept between commands.
type Service struct {
	address    string
	qos        byte
	bus        Bus
	dispatcher Dispatcher
	logger     Logger

	ctx       context.Context
	ctxCancel context.CancelFunc

	// mu guards stopped and subscribed; wg tracks in-flight messages.
	mu         sync.RWMutex
	stopped    bool
	subscribed bool
	wg         sync.WaitGroup
	stopOnce   sync.Once

	received      atomic.Uint64
	replied       atomic.Uint64
	invalid       atomic.Uint64
	replyFailures atomic.Uint64
}

// NewService creates a service. Call Start to subscribe.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		address:    opts.Address,
		qos:        opts.QoS,
		bus:        opts.Bus,
		dispatcher: opts.Dispatcher,
		logger:     logger,
		ctx:        ctx,
		ctxCancel:  cancel,
	}, nil
}

// CommandTopic returns the topic the service listens on.
func (s *Service) CommandTopic() string {
	return mqtt.Topics{}.Command(s.address)
}

// Start subscribes to the command topic.
func (s *Service) Start(_ context.Context) error {
	topic := s.CommandTopic()
	if err := s.bus.Subscribe(topic, s.qos, s.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}

	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()

	s.logger.Info("persistor listening", "topic", topic)
	return nil
}

// Stop unsubscribes, cancels in-flight backend calls and waits for their
// replies to be published. Safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		wasSubscribed := s.subscribed
		s.subscribed = false
		s.mu.Unlock()

		if wasSubscribed {
			if err := s.bus.Unsubscribe(s.CommandTopic()); err != nil {
				s.logger.Warn("failed to unsubscribe from commands", "error", err)
			}
		}

		s.ctxCancel()
		s.wg.Wait()

		s.logger.Info("persistor stopped")
	})
}

// Stats returns the current bus counters.
func (s *Service) Stats() ServiceStats {
	s.mu.RLock()
	subscribed := s.subscribed
	s.mu.RUnlock()

	return ServiceStats{
		Received:       s.received.Load(),
		Replied:        s.replied.Load(),
		Invalid:        s.invalid.Load(),
		ReplyFailures:  s.replyFailures.Load(),
		CommandTopic:   s.CommandTopic(),
		SubscriptionUp: subscribed,
	}
}

// handleMessage is the bus callback for one command envelope.
func (s *Service) handleMessage(topic string, payload []byte) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.wg.Add(1)
	s.mu.RUnlock()
	defer s.wg.Done()

	s.received.Add(1)

	cmd, err := ParseCommand(payload)
	if err != nil {
		// No reply topic can be read from an undecodable envelope.
		s.invalid.Add(1)
		s.logger.Warn("discarding invalid command envelope", "topic", topic, "error", err)
		return err
	}

	if cmd.RequestID == "" {
		cmd.RequestID = uuid.NewString()
	}

	result := s.dispatcher.Dispatch(s.ctx, cmd)
	return s.reply(cmd, result)
}

// reply publishes result to the command's reply topic.
func (s *Service) reply(cmd Command, result Result) error {
	topic := s.replyTopic(cmd)

	fields := result.Fields()
	fields[fieldRequestID] = cmd.RequestID

	data, err := json.Marshal(fields)
	if err != nil {
		s.replyFailures.Add(1)
		return fmt.Errorf("encoding reply: %w", err)
	}

	if err := s.bus.Publish(topic, data, s.qos, false); err != nil {
		s.replyFailures.Add(1)
		s.logger.Error("failed to publish reply",
			"topic", topic,
			"request_id", cmd.RequestID,
			"error", err)
		return fmt.Errorf("publishing reply: %w", err)
	}

	s.replied.Add(1)
	return nil
}

// replyTopic returns reply_to when it is publishable, otherwise the default
// per-request reply topic. A request_id with wildcards gets a generated topic
// segment instead.
func (s *Service) replyTopic(cmd Command) string {
	if cmd.ReplyTo != "" {
		if mqtt.IsPublishable(cmd.ReplyTo) {
			return cmd.ReplyTo
		}
		s.logger.Warn("ignoring unpublishable reply_to", "reply_to", cmd.ReplyTo, "request_id", cmd.RequestID)
	}

	topic := mqtt.Topics{}.Reply(s.address, cmd.RequestID)
	if mqtt.IsPublishable(topic) {
		return topic
	}

	// The reply body still carries the caller's request_id.
	fallback := mqtt.Topics{}.Reply(s.address, uuid.NewString())
	s.logger.Warn("request_id not usable in reply topic",
		"request_id", cmd.RequestID,
		"topic", fallback)
	return fallback
}
