// Package queue provides the rate-limited delaying work queue that feeds
// controller workers.
//
// It wraps client-go's workqueue so that pending items are deduplicated, an
// item is handed to at most one worker until Done is called, and failed
// items are retried with per-item exponential backoff bounded by an overall
// token bucket. Get takes a context; canceling it shuts the queue down.
package queue

import (
	"context"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/client-go/util/workqueue"
	// Registers the workqueue metrics provider with the controller-runtime registry.
	_ "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/giantswarm/kopkit/pkg/logging"
)

const logSubsystem = "Queue"

// Options configure the rate limiter of a Queue.
type Options struct {
	// Name labels the workqueue metrics. Empty disables metrics.
	Name string
	// BaseDelay is the first per-item retry delay.
	BaseDelay time.Duration
	// MaxDelay caps the per-item retry delay.
	MaxDelay time.Duration
	// QPS and Burst bound the overall retry rate.
	QPS   float64
	Burst int
}

// DefaultOptions mirror client-go's default controller rate limiter.
func DefaultOptions() Options {
	return Options{
		BaseDelay: 5 * time.Millisecond,
		MaxDelay:  1000 * time.Second,
		QPS:       10,
		Burst:     100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.QPS <= 0 {
		o.QPS = d.QPS
	}
	if o.Burst <= 0 {
		o.Burst = d.Burst
	}
	return o
}

// Queue is a rate-limited delaying queue of comparable items.
type Queue[T comparable] struct {
	q workqueue.TypedRateLimitingInterface[T]
}

// New returns a queue configured by opts. Zero fields take DefaultOptions values.
func New[T comparable](opts Options) *Queue[T] {
	opts = opts.withDefaults()
	limiter := workqueue.NewTypedMaxOfRateLimiter[T](
		workqueue.NewTypedItemExponentialFailureRateLimiter[T](opts.BaseDelay, opts.MaxDelay),
		&workqueue.TypedBucketRateLimiter[T]{Limiter: rate.NewLimiter(rate.Limit(opts.QPS), opts.Burst)},
	)
	return &Queue[T]{
		q: workqueue.NewTypedRateLimitingQueueWithConfig(limiter, workqueue.TypedRateLimitingQueueConfig[T]{
			Name: opts.Name,
		}),
	}
}

// Add enqueues item unless it is already pending.
func (q *Queue[T]) Add(item T) {
	q.q.Add(item)
}

// AddAfter enqueues item once delay has passed.
func (q *Queue[T]) AddAfter(item T, delay time.Duration) {
	q.q.AddAfter(item, delay)
}

// AddRateLimited enqueues item after its backoff delay.
func (q *Queue[T]) AddRateLimited(item T) {
	q.q.AddRateLimited(item)
}

// Forget clears the backoff history of item.
func (q *Queue[T]) Forget(item T) {
	q.q.Forget(item)
}

// NumRequeues returns how often item was re-added with AddRateLimited since
// it was last forgotten.
func (q *Queue[T]) NumRequeues(item T) int {
	return q.q.NumRequeues(item)
}

// Get blocks until an item is available. It returns shutdown=true once the
// queue is shut down; canceling ctx shuts the queue down.
func (q *Queue[T]) Get(ctx context.Context) (item T, shutdown bool) {
	if ctx.Err() != nil {
		q.ShutDown()
	}
	stop := context.AfterFunc(ctx, func() {
		logging.Debug(logSubsystem, "Context canceled, shutting down queue")
		q.q.ShutDown()
	})
	defer stop()

	return q.q.Get()
}

// Done marks item as processed. An item re-added while processing is
// redelivered only after Done.
func (q *Queue[T]) Done(item T) {
	q.q.Done(item)
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	return q.q.Len()
}

// ShutDown stops the queue. Pending Get calls return shutdown=true.
func (q *Queue[T]) ShutDown() {
	q.q.ShutDown()
}

// ShuttingDown reports whether ShutDown was called.
func (q *Queue[T]) ShuttingDown() bool {
	return q.q.ShuttingDown()
}
