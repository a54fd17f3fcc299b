package operator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/informer"
	"github.com/giantswarm/kopkit/pkg/logging"
	"github.com/giantswarm/kopkit/pkg/names"
	"github.com/giantswarm/kopkit/pkg/operator/cache"
	"github.com/giantswarm/kopkit/pkg/queue"
)

const logSubsystem = "Controller"

// ErrAlreadyStarted is returned by Run when the controller has run before.
var ErrAlreadyStarted = errors.New("controller already started")

// Config wires a Controller.
type Config[T client.Object] struct {
	Options Options

	// Primary watches the managed kind. Its objects must be of type T.
	Primary informer.Informer

	// Related watch the kinds owned by the managed kind. Objects without an
	// owner reference to the primary kind are ignored.
	Related []informer.Informer

	Reconciler Reconciler[T]
}

// Controller turns notifications for a primary kind and its related kinds
// into serialized reconcile calls per primary resource.
type Controller[T client.Object] struct {
	opts       Options
	primary    informer.Informer
	primaryGVK schema.GroupVersionKind
	related    []informer.Informer
	reconciler Reconciler[T]

	cache  *cache.Cache[T]
	queue  *queue.Queue[names.NamespacedName]
	status *statusTracker

	started atomic.Bool
}

// New validates cfg and returns a controller ready to Run.
func New[T client.Object](cfg Config[T]) (*Controller[T], error) {
	if cfg.Primary == nil {
		return nil, fmt.Errorf("primary informer is required")
	}
	if cfg.Reconciler == nil {
		return nil, fmt.Errorf("reconciler is required")
	}
	for i, inf := range cfg.Related {
		if inf == nil {
			return nil, fmt.Errorf("related informer %d is nil", i)
		}
	}

	opts := cfg.Options
	gvk := cfg.Primary.GroupVersionKind()
	if opts.Name == "" {
		opts.Name = gvk.Kind
	}
	opts = opts.Default()

	return &Controller[T]{
		opts:       opts,
		primary:    cfg.Primary,
		primaryGVK: gvk,
		related:    cfg.Related,
		reconciler: cfg.Reconciler,
		cache:      cache.New[T](),
		queue:      queue.New[names.NamespacedName](opts.queueOptions()),
		status:     newStatusTracker(),
	}, nil
}

// Name returns the controller name.
func (c *Controller[T]) Name() string {
	return c.opts.Name
}

// Run registers with every informer, waits for their initial listings and
// then reconciles until ctx is canceled. A controller runs at most once.
func (c *Controller[T]) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	regs, err := c.register()
	defer func() {
		for _, reg := range regs {
			if err := reg.Dispose(); err != nil {
				logging.Warn(logSubsystem, "%s: failed to dispose registration: %v", c.opts.Name, err)
			}
		}
		c.queue.ShutDown()
	}()
	if err != nil {
		return err
	}

	logging.Debug(logSubsystem, "%s: waiting for %d informers to sync", c.opts.Name, len(regs))
	for _, reg := range regs {
		if err := reg.Ready(ctx); err != nil {
			return fmt.Errorf("waiting for informers of %s: %w", c.opts.Name, err)
		}
	}

	logging.Info(logSubsystem, "%s: started with %d workers", c.opts.Name, c.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.opts.Workers; i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, id)
			return nil
		})
	}
	err = g.Wait()

	logging.Info(logSubsystem, "%s: stopped", c.opts.Name)
	return err
}

func (c *Controller[T]) register() ([]informer.Registration, error) {
	regs := make([]informer.Registration, 0, 1+len(c.related))

	reg, err := c.primary.Register(c.onPrimary)
	if err != nil {
		return regs, fmt.Errorf("registering with %s informer: %w", c.primaryGVK.Kind, err)
	}
	regs = append(regs, reg)

	for _, inf := range c.related {
		gvk := inf.GroupVersionKind()
		reg, err := inf.Register(func(event informer.EventType, obj client.Object) {
			c.onRelated(gvk, event, obj)
		})
		if err != nil {
			return regs, fmt.Errorf("registering with %s informer: %w", gvk.Kind, err)
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func (c *Controller[T]) onPrimary(event informer.EventType, obj client.Object) {
	key := names.FromObject(obj)

	var update cache.UpdateFunc[T]
	if event == informer.Deleted {
		update = func(item cache.WorkItem[T]) cache.WorkItem[T] {
			return item.WithoutResource()
		}
	} else {
		resource, ok := obj.(T)
		if !ok {
			logging.Warn(logSubsystem, "%s: ignoring %s %s of unexpected type %T", c.opts.Name, event, key, obj)
			return
		}
		update = func(item cache.WorkItem[T]) cache.WorkItem[T] {
			return item.WithResource(resource)
		}
	}

	logging.Debug(logSubsystem, "%s: %s %s", c.opts.Name, event, key)
	c.cache.Update(key, update)
	c.enqueue(key)
}

func (c *Controller[T]) onRelated(gvk schema.GroupVersionKind, event informer.EventType, obj client.Object) {
	relatedKey := names.ForObject(gvk, obj)

	for _, owner := range c.owners(obj) {
		var update cache.UpdateFunc[T]
		if event == informer.Deleted {
			update = func(item cache.WorkItem[T]) cache.WorkItem[T] {
				return item.WithoutRelated(relatedKey)
			}
		} else {
			update = func(item cache.WorkItem[T]) cache.WorkItem[T] {
				return item.WithRelated(relatedKey, obj)
			}
		}

		logging.Debug(logSubsystem, "%s: %s %s owned by %s", c.opts.Name, event, relatedKey, owner)
		c.cache.Update(owner, update)
		c.enqueue(owner)
	}
}

// owners returns the identities of the primary resources obj names in its
// owner references. The version of a reference is not compared: owners of
// a multi-version CRD record whichever version created them, and matching it
// would drop their events once the controller watches another version.
func (c *Controller[T]) owners(obj client.Object) []names.NamespacedName {
	var out []names.NamespacedName
	for _, ref := range obj.GetOwnerReferences() {
		if ref.Kind != c.primaryGVK.Kind {
			continue
		}
		gv, err := schema.ParseGroupVersion(ref.APIVersion)
		if err != nil || gv.Group != c.primaryGVK.Group {
			continue
		}
		owner := names.NamespacedName{Namespace: obj.GetNamespace(), Name: ref.Name}
		if !contains(out, owner) {
			out = append(out, owner)
		}
	}
	return out
}

func contains(keys []names.NamespacedName, key names.NamespacedName) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

func (c *Controller[T]) enqueue(key names.NamespacedName) {
	c.status.pending(key)
	cacheItems.WithLabelValues(c.opts.Name).Set(float64(c.cache.Len()))
	c.queue.Add(key)
}

// Enqueue schedules a reconcile of key outside of any notification.
func (c *Controller[T]) Enqueue(key names.NamespacedName) {
	c.enqueue(key)
}

// QueueLen returns the number of pending identities.
func (c *Controller[T]) QueueLen() int {
	return c.queue.Len()
}

// Status returns the reconcile status of key.
func (c *Controller[T]) Status(key names.NamespacedName) (ReconcileStatus, bool) {
	return c.status.get(key)
}

// Statuses returns the reconcile status of every known identity, ordered by
// namespace and name.
func (c *Controller[T]) Statuses() []ReconcileStatus {
	return c.status.all()
}

func (c *Controller[T]) worker(ctx context.Context, id int) {
	logging.Debug(logSubsystem, "%s: worker %d started", c.opts.Name, id)
	for c.processNext(ctx) {
	}
	logging.Debug(logSubsystem, "%s: worker %d shutting down", c.opts.Name, id)
}

func (c *Controller[T]) processNext(ctx context.Context) bool {
	key, shutdown := c.queue.Get(ctx)
	if shutdown {
		return false
	}
	defer c.queue.Done(key)

	if ctx.Err() != nil {
		return false
	}
	c.process(ctx, key)
	return true
}

func (c *Controller[T]) process(ctx context.Context, key names.NamespacedName) {
	item, _ := c.cache.TryGet(key)
	resource, ok := item.Resource()
	if !ok {
		logging.Debug(logSubsystem, "%s: %s has no resource, skipping", c.opts.Name, key)
		c.queue.Forget(key)
		return
	}

	params := ReconcileParameters[T]{
		Resource:         resource.DeepCopyObject().(T),
		RelatedResources: item.Related(),
	}
	for k, v := range params.RelatedResources {
		params.RelatedResources[k] = v.DeepCopyObject().(client.Object)
	}

	attempt := uuid.NewString()
	c.status.update(key, StateReconciling, "")
	logging.Debug(logSubsystem, "%s: reconciling %s (attempt %s, %d related)",
		c.opts.Name, key, attempt, len(params.RelatedResources))

	start := time.Now()
	result := c.invoke(ctx, params)
	reconcileDuration.WithLabelValues(c.opts.Name).Observe(time.Since(start).Seconds())
	reconcileTotal.WithLabelValues(c.opts.Name, resultLabel(result)).Inc()

	if result.Error != nil {
		logging.Warn(logSubsystem, "%s: reconcile of %s failed (attempt %s): %v",
			c.opts.Name, key, attempt, result.Error)
		c.status.update(key, StateError, result.Error.Error())
	} else {
		c.status.update(key, StateSynced, "")
	}

	switch {
	case result.RequeueAfter > 0:
		c.queue.Forget(key)
		c.queue.AddAfter(key, result.RequeueAfter)
		logging.Debug(logSubsystem, "%s: requeuing %s after %v", c.opts.Name, key, result.RequeueAfter)
	case result.Requeue:
		c.queue.AddRateLimited(key)
		logging.Debug(logSubsystem, "%s: requeuing %s (retry %d)", c.opts.Name, key, c.queue.NumRequeues(key))
	default:
		c.queue.Forget(key)
	}
}

// invoke runs the reconciler with the configured timeout. Cancellation of ctx
// does not interrupt a reconcile in flight.
func (c *Controller[T]) invoke(ctx context.Context, params ReconcileParameters[T]) (result ReconcileResult) {
	rctx := context.WithoutCancel(ctx)
	if c.opts.ReconcileTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.opts.ReconcileTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error(logSubsystem, fmt.Errorf("panic: %v", r), "%s: reconciler panicked\n%s", c.opts.Name, debug.Stack())
			result = ReconcileResult{Error: fmt.Errorf("reconciler panicked: %v", r), Requeue: true}
		}
	}()

	result = c.reconciler.Reconcile(rctx, params)
	if result.Error == nil && errors.Is(rctx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Errorf("reconcile timed out after %v", c.opts.ReconcileTimeout)
		result.Requeue = true
	}
	return result
}
