package informer

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"

	"github.com/giantswarm/kopkit/pkg/logging"
)

// KubernetesSource hands out informers backed by one controller-runtime
// cache. Informers should be requested before Start; requesting one from a
// started source blocks until that informer has synced.
type KubernetesSource struct {
	mu sync.Mutex

	scheme    *runtime.Scheme
	namespace string
	cache     cache.Cache

	running    bool
	cancelFunc context.CancelFunc
}

// NewScheme returns a scheme with the client-go types plus the given additions.
func NewScheme(addToScheme ...func(*runtime.Scheme) error) (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	for _, add := range addToScheme {
		if err := add(scheme); err != nil {
			return nil, err
		}
	}
	return scheme, nil
}

// NewKubernetesSource creates a cache for restConfig. An empty namespace
// watches all namespaces.
func NewKubernetesSource(restConfig *rest.Config, scheme *runtime.Scheme, namespace string) (*KubernetesSource, error) {
	opts := cache.Options{Scheme: scheme}
	if namespace != "" {
		opts.DefaultNamespaces = map[string]cache.Config{namespace: {}}
	}

	c, err := cache.New(restConfig, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return NewKubernetesSourceFromCache(c, scheme, namespace), nil
}

// NewKubernetesSourceFromCache wraps an existing cache.
func NewKubernetesSourceFromCache(c cache.Cache, scheme *runtime.Scheme, namespace string) *KubernetesSource {
	return &KubernetesSource{scheme: scheme, namespace: namespace, cache: c}
}

// Cache returns the underlying cache, for building cache-backed clients.
func (k *KubernetesSource) Cache() cache.Cache {
	return k.cache
}

// Scheme returns the scheme used to map objects to kinds.
func (k *KubernetesSource) Scheme() *runtime.Scheme {
	return k.scheme
}

// For returns the informer for the kind of obj. obj may be a typed object
// registered in the scheme or an *unstructured.Unstructured with its kind set.
func (k *KubernetesSource) For(ctx context.Context, obj client.Object) (Informer, error) {
	gvk, err := apiutil.GVKForObject(obj, k.scheme)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve kind of %T: %w", obj, err)
	}
	inf, err := k.cache.GetInformer(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("failed to get informer for %s: %w", gvk, err)
	}
	logging.Debug(logSubsystem, "Setup informer for %s", gvk)
	return FromShared(gvk, inf), nil
}

// Start runs the cache until ctx is canceled or Stop is called. It does not
// wait for the informers to sync; registrations report that through Ready.
func (k *KubernetesSource) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	k.cancelFunc = cancel
	k.running = true

	go func() {
		if err := k.cache.Start(ctx); err != nil {
			logging.Error(logSubsystem, err, "Cache stopped with error")
		}
	}()

	logging.Info(logSubsystem, "Started watching Kubernetes resources in namespace: %s", k.namespaceDisplay())
	return nil
}

// Stop stops the cache and all informers.
func (k *KubernetesSource) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return nil
	}
	k.running = false
	if k.cancelFunc != nil {
		k.cancelFunc()
	}

	logging.Info(logSubsystem, "Stopped Kubernetes informers")
	return nil
}

func (k *KubernetesSource) namespaceDisplay() string {
	if k.namespace == "" {
		return "all namespaces"
	}
	return k.namespace
}

// GetRestConfig returns the REST config found by controller-runtime's usual
// lookup (flags, KUBECONFIG, in-cluster).
func GetRestConfig() (*rest.Config, error) {
	return ctrl.GetConfig()
}
