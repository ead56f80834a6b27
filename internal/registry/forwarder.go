// Package registry forwards device events to the external GRD registry.
// A single lazily started background worker drains a FIFO queue; event
// creation never waits on registry latency.
package registry

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eReuse/DeviceWare/internal/config"
)

// queueCapacity bounds the forwarding queue. Producers block only in the
// pathological case of the buffer filling up faster than the worker
// drains it.
const queueCapacity = 4096

// QueueItem is one unit of forwarding work. Produced by request
// handlers, consumed only by the worker.
type QueueItem struct {
	EventID uuid.UUID
	Tenant  string
	// Config is a snapshot of the registry settings at enqueue time
	Config config.RegistryConfig
}

// SenderFactory builds the sender for one queue item from its config
// snapshot; tests substitute fakes through it.
type SenderFactory func(cfg config.RegistryConfig) EventSender

// EventSender is what the worker needs from a sender
type EventSender interface {
	GenerateURL(unit *Unit) string
	Post(event TranslatedEvent, url string)
}

// Forwarder owns the queue and the worker. Exactly one worker processes
// items at a time, strictly in enqueue order.
type Forwarder struct {
	cfg         *config.RegistryConfig
	baseURL     string
	client      *Client
	provisioner Provisioner
	newSender   SenderFactory
	logger      *zap.Logger

	queue chan QueueItem

	mu      sync.Mutex
	running bool

	// token is resolved once per worker lifetime and reused for every
	// item. It is not refreshed on expiry: a long-lived worker whose
	// token lapses will log fetch failures until restarted.
	token string
}

func NewForwarder(cfg *config.RegistryConfig, baseURL string, client *Client, provisioner Provisioner, logger *zap.Logger) *Forwarder {
	f := &Forwarder{
		cfg:         cfg,
		baseURL:     baseURL,
		client:      client,
		provisioner: provisioner,
		logger:      logger,
		queue:       make(chan QueueItem, queueCapacity),
	}
	f.newSender = func(snapshot config.RegistryConfig) EventSender {
		return NewSender(snapshot, logger)
	}
	return f
}

// Enqueue appends a forwarding item for the event and makes sure a
// worker is running. It never blocks the caller beyond queue insertion.
func (f *Forwarder) Enqueue(eventID uuid.UUID, tenant string) {
	if !f.cfg.Enabled {
		return
	}

	// Check-and-start under the mutex: two near-simultaneous enqueues
	// must start exactly one worker.
	f.mu.Lock()
	if !f.running {
		f.running = true
		go f.run()
	}
	f.mu.Unlock()

	f.queue <- QueueItem{
		EventID: eventID,
		Tenant:  tenant,
		Config:  *f.cfg,
	}
}

// run is the worker loop. It resolves the token once, then drains the
// queue forever, blocking while it is empty. Item-level failures are
// logged and skipped; a panic terminates the worker, and the cleared
// liveness flag lets the next Enqueue start a fresh one.
func (f *Forwarder) run() {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Registry worker crashed",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	token, err := f.authenticate()
	if err != nil {
		f.logger.Error("Registry worker failed to authenticate",
			zap.Error(err),
		)
		return
	}
	f.token = token
	f.logger.Info("Registry worker started")

	for item := range f.queue {
		if err := f.process(item); err != nil {
			var benign *BenignError
			if !errors.As(err, &benign) {
				f.logger.Error("Failed to forward event to registry",
					zap.String("event_id", item.EventID.String()),
					zap.String("tenant", item.Tenant),
					zap.Error(err),
				)
			}
		}
	}
}

// authenticate provisions the service account (tolerating earlier
// provisioning) and logs in through the internal API.
func (f *Forwarder) authenticate() (string, error) {
	if err := f.provisioner.EnsureServiceAccount(f.cfg.Account); err != nil {
		return "", fmt.Errorf("failed to provision service account: %w", err)
	}
	return f.client.Login(f.cfg.Account.Email, f.cfg.Account.Password)
}

// process handles one queue item: fetch, translate, deliver
func (f *Forwarder) process(item QueueItem) error {
	if !item.Config.Enabled {
		return nil
	}

	event, err := f.client.GetEvent(item.Tenant, item.EventID, f.token)
	if err != nil {
		return fmt.Errorf("failed to fetch event: %w", err)
	}
	if !event.Kind.Forwarded() {
		return Benign(fmt.Errorf("event kind %s is not forwarded", event.Kind))
	}

	sender := f.newSender(item.Config)
	for _, unit := range Translate(event, item.Tenant, f.baseURL) {
		// Delivery failures are absorbed inside the sender
		sender.Post(unit.Translated, sender.GenerateURL(&unit))
	}
	return nil
}
