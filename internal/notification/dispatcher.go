package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/complytics/internal/config"
	"github.com/smallbiznis/complytics/internal/observability/metrics"
	"github.com/smallbiznis/complytics/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 256
	failureBuffer    = 1024
	sendTimeout      = 30 * time.Second
)

var errDispatcherStopped = errors.New("notification dispatcher stopped")

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   config.Config
	Provider email.Provider
	Settings *config.NotificationSettingsHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

// Dispatcher queues messages on a bounded channel and delivers them from a
// fixed pool of workers, throttled by a token bucket. Undeliverable
// messages are reported on Failures.
type Dispatcher struct {
	log      *zap.Logger
	provider email.Provider
	settings *config.NotificationSettingsHolder
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	workers  int

	mu             sync.RWMutex
	closed         bool
	started        bool
	failuresClosed bool
	queue          chan Message
	failures       chan Failure

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(p Params) *Dispatcher {
	workers := p.Config.Notify.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	size := p.Config.Notify.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	limit := rate.Inf
	if p.Config.Notify.RatePerSec > 0 {
		limit = rate.Limit(p.Config.Notify.RatePerSec)
	}
	settings := p.Settings
	if settings == nil {
		settings = config.NewStaticNotificationSettings(config.DefaultNotificationSettings())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		log:      p.Log.Named("notification.dispatcher"),
		provider: p.Provider,
		settings: settings,
		metrics:  p.Metrics,
		limiter:  rate.NewLimiter(limit, workers),
		workers:  workers,
		queue:    make(chan Message, size),
		failures: make(chan Failure, failureBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if msg.ID == "" {
		msg.ID = NewMessage(msg.Template, msg.To, msg.Data).ID
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		if d.failuresClosed {
			d.log.Warn("dropped after shutdown", zap.String("message_id", msg.ID), zap.String("template", msg.Template))
			return
		}
		d.fail(msg, ReasonShutdown, errDispatcherStopped)
		return
	}
	select {
	case d.queue <- msg:
		d.metrics.AdjustQueueDepth(ctx, 1)
	default:
		d.fail(msg, ReasonQueueFull, nil)
	}
}

// Failures is closed after Stop has drained the workers.
func (d *Dispatcher) Failures() <-chan Failure {
	return d.failures
}

func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.log.Info("started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Stop rejects new messages and waits for queued ones to be delivered.
// When ctx expires first, in-flight sends are cancelled and the remainder
// is reported as failures.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		d.cancel()
		d.drain()
		d.closeFailures()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		d.cancel()
		<-done
	}
	d.cancel()
	d.closeFailures()
	return err
}

func (d *Dispatcher) closeFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failuresClosed = true
	close(d.failures)
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.metrics.AdjustQueueDepth(d.ctx, -1)
		d.deliver(msg)
	}
}

func (d *Dispatcher) drain() {
	for msg := range d.queue {
		d.metrics.AdjustQueueDepth(d.ctx, -1)
		d.fail(msg, ReasonShutdown, errDispatcherStopped)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	if err := d.limiter.Wait(d.ctx); err != nil {
		d.fail(msg, ReasonShutdown, err)
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, sendTimeout)
	defer cancel()

	if err := d.provider.SendTemplate(ctx, []string{msg.To}, msg.Template, d.templateData(msg)); err != nil {
		d.fail(msg, ReasonSendFailed, err)
		return
	}
	d.metrics.RecordNotification(ctx, msg.Template, "sent")
	d.log.Debug("delivered", zap.String("message_id", msg.ID), zap.String("template", msg.Template))
}

func (d *Dispatcher) templateData(msg Message) map[string]string {
	settings := d.settings.Get()
	data := make(map[string]string, len(msg.Data)+3)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["subject"] = settings.Subject(msg.Template)
	data["product_name"] = settings.ProductName
	data["login_url"] = settings.LoginURL
	return data
}

func (d *Dispatcher) fail(msg Message, reason string, err error) {
	d.metrics.RecordNotification(d.ctx, msg.Template, reason)
	select {
	case d.failures <- newFailure(msg, reason, err):
	default:
		d.log.Warn("failure channel full, dropping report",
			zap.String("message_id", msg.ID),
			zap.String("template", msg.Template),
			zap.String("reason", reason),
		)
	}
}
