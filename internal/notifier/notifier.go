// Package notifier delivers alert notifications over email, WhatsApp,
// Microsoft Teams and Telegram.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// Message is what a triggered alert run tells its recipients.
type Message struct {
	AlertID     string
	AlertName   string
	Description string
	ReportName  string
	Status      models.AlertStatus
	Condition   string
	KPI         string
	Value       float64
	Text        string
	URL         string
	Timestamp   time.Time
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Channel returns the channel this notifier serves.
	Channel() models.Channel
	// Send delivers msg to every recipient in to.
	Send(ctx context.Context, msg *Message, to []string) error
	// Close releases any resources.
	Close() error
}

// Dispatcher routes messages to the notifier of each channel.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[models.Channel]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcher creates a new notification dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithRateLimit(DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[models.Channel]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a notifier to the dispatcher, replacing any notifier of the same channel.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Channel()] = n
}

// Unregister removes the notifier of a channel.
func (d *Dispatcher) Unregister(ch models.Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, ch)
}

// Get returns the notifier of a channel.
func (d *Dispatcher) Get(ch models.Channel) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[ch]
	return n, ok
}

// Channels returns the channels with a registered notifier.
func (d *Dispatcher) Channels() []models.Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Channel
	for _, ch := range models.Channels {
		if _, ok := d.notifiers[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// ErrRateLimited is returned when a notification is dropped due to rate limiting.
var ErrRateLimited = errors.New("notification rate limited")

// Dispatch sends msg to every channel of recipients that has addresses and a
// registered notifier. A dispatch consumes one rate-limit token; the token is
// refunded when nothing was delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message, recipients models.Recipients) error {
	if recipients.Count() == 0 {
		return nil
	}

	reservation, ok := d.rateLimiter.Reserve()
	if !ok {
		metrics.NotificationsRateLimited.Inc()
		return ErrRateLimited
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var errs []error
	delivered := 0
	for _, ch := range models.Channels {
		to := recipients.For(ch)
		if len(to) == 0 {
			continue
		}
		n, ok := d.notifiers[ch]
		if !ok {
			continue
		}
		if err := n.Send(ctx, msg, to); err != nil {
			metrics.NotificationsTotal.WithLabelValues(string(ch), "failed").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(string(ch), "sent").Inc()
		delivered++
	}

	if delivered == 0 {
		reservation.Cancel()
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %w", errors.Join(errs...))
	}
	return nil
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for ch, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	d.notifiers = make(map[models.Channel]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}
