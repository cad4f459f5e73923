package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/events"
	"github.com/spec-kit/vendor-desk/internal/service"
)

const provisioningQueueSize = 256

// ProvisioningWorker creates chat identities for new vendors off the request
// path. Events queue in order and are handled by a single goroutine.
type ProvisioningWorker struct {
	svc    *service.ProvisioningService
	queue  chan events.Event
	logger *zap.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
	ctx    context.Context
	// jobCtx outlives Stop so queued vendors are still provisioned
	jobCtx context.Context
}

// StartProvisioningWorker subscribes to vendor_created and starts draining.
// Stop releases the goroutine once the queue is empty.
func StartProvisioningWorker(ctx context.Context, dispatcher events.Dispatcher, svc *service.ProvisioningService, logger *zap.Logger) *ProvisioningWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &ProvisioningWorker{
		svc:    svc,
		queue:  make(chan events.Event, provisioningQueueSize),
		logger: logger.With(zap.String("worker", "provisioning")),
		cancel: cancel,
		ctx:    ctx,
		jobCtx: context.WithoutCancel(ctx),
	}
	dispatcher.Subscribe(events.EventVendorCreated, w.enqueue)

	w.wg.Add(1)
	go w.run()
	return w
}

// enqueue blocks while the queue is full so no vendor is silently dropped.
func (w *ProvisioningWorker) enqueue(ctx context.Context, event events.Event) error {
	select {
	case w.queue <- event:
		return nil
	case <-w.ctx.Done():
		w.logger.Warn("worker stopped; vendor not provisioned", zap.String("vendor_uid", event.Subject))
		return w.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *ProvisioningWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case event := <-w.queue:
			// failures are logged and counted by the service
			_ = w.svc.HandleVendorCreated(w.jobCtx, event)
		}
	}
}

// drain provisions whatever was queued before shutdown.
func (w *ProvisioningWorker) drain() {
	for {
		select {
		case event := <-w.queue:
			_ = w.svc.HandleVendorCreated(w.jobCtx, event)
		default:
			return
		}
	}
}

// Stop cancels the worker and waits for queued events to be handled.
func (w *ProvisioningWorker) Stop() {
	w.cancel()
	w.wg.Wait()
}
