package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/giantswarm/kopkit/pkg/informer"
	"github.com/giantswarm/kopkit/pkg/kinds"
	"github.com/giantswarm/kopkit/pkg/names"
	"github.com/giantswarm/kopkit/pkg/operator"
	"github.com/giantswarm/kopkit/pkg/patch"
)

func newWatchCmd() *cobra.Command {
	var (
		flags      schemaFlags
		apiVersion string
		kind       string
		debounce   time.Duration
		cluster    bool
		namespace  string
	)

	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Print the patch of every change to resources of one kind",
		Long: `Watches DIR for YAML manifests of one kind and prints, for every change,
the JSON patch that turns the previous version of a resource into the new
one. The first version of each resource is printed as a single replace.

With --cluster, the resources are watched in the cluster of the current
kubeconfig instead and DIR must be omitted.

Changes run through the same rate-limited controller loop an operator uses;
the operator section of the configuration file tunes it.`,
		Example: `  kopkit watch ./manifests --api-version apps/v1 --kind Deployment --openapi swagger.json
  kopkit watch --cluster --namespace default --kind ConfigMap --from-cluster`,
		Args: func(cmd *cobra.Command, args []string) error {
			if cluster && len(args) != 0 {
				return fmt.Errorf("DIR cannot be combined with --cluster")
			}
			if !cluster && len(args) != 1 {
				return fmt.Errorf("expected DIR, or --cluster")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, _, err := buildProvider(flags.resolve(cmd, loadedConfig.Schema))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			gvk := schema.FromAPIVersionAndKind(apiVersion, kind)
			var (
				src     watchSource
				primary informer.Informer
			)
			if cluster {
				if src, primary, err = clusterWatch(ctx, namespace, gvk); err != nil {
					return err
				}
			} else {
				src, primary = fileWatch(args[0], gvk, debounce)
			}
			return runWatch(ctx, src, primary, newChangeFeed(cmd.OutOrStdout(), provider))
		},
	}

	cmd.Flags().StringVar(&apiVersion, "api-version", "v1", "apiVersion of the watched resources")
	cmd.Flags().StringVar(&kind, "kind", "", "Kind of the watched resources (required)")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before a changed file is read")
	cmd.Flags().BoolVar(&cluster, "cluster", false, "Watch the cluster of the current kubeconfig instead of a directory")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace to watch with --cluster (default all namespaces)")
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

// watchSource runs the informers a watch reads from.
type watchSource interface {
	Start(ctx context.Context) error
	Stop() error
}

func fileWatch(dir string, gvk schema.GroupVersionKind, debounce time.Duration) (watchSource, informer.Informer) {
	inf := informer.NewFileInformer(dir, gvk, debounce)
	return inf, inf
}

func clusterWatch(ctx context.Context, namespace string, gvk schema.GroupVersionKind) (watchSource, informer.Informer, error) {
	restConfig, err := informer.GetRestConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	scheme, err := informer.NewScheme()
	if err != nil {
		return nil, nil, err
	}
	src, err := informer.NewKubernetesSource(restConfig, scheme, namespace)
	if err != nil {
		return nil, nil, err
	}
	inf, err := clusterInformer(ctx, src, gvk)
	if err != nil {
		return nil, nil, err
	}
	return src, inf, nil
}

// clusterInformer requests an unstructured informer so any kind the API
// server serves can be watched without a registered Go type.
func clusterInformer(ctx context.Context, src *informer.KubernetesSource, gvk schema.GroupVersionKind) (informer.Informer, error) {
	obj := &unstructured.Unstructured{}
	obj.SetGroupVersionKind(gvk)
	return src.For(ctx, obj)
}

func runWatch(ctx context.Context, src watchSource, primary informer.Informer, feed *changeFeed) error {
	gvk := primary.GroupVersionKind()
	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", gvk.Kind, err)
	}
	defer func() { _ = src.Stop() }()

	opts := loadedConfig.Operator
	if opts.Name == "" {
		opts.Name = "watch-" + gvk.Kind
	}
	c, err := operator.New(operator.Config[*unstructured.Unstructured]{
		Options:    opts,
		Primary:    primary,
		Reconciler: feed,
	})
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// changeFeed is a reconciler that prints how each resource changed since it
// was last reconciled.
type changeFeed struct {
	out      io.Writer
	provider kinds.Provider

	mu       sync.Mutex
	previous map[names.NamespacedName]map[string]interface{}
}

func newChangeFeed(out io.Writer, provider kinds.Provider) *changeFeed {
	return &changeFeed{
		out:      out,
		provider: provider,
		previous: make(map[names.NamespacedName]map[string]interface{}),
	}
}

// Reconcile implements operator.Reconciler.
func (f *changeFeed) Reconcile(ctx context.Context, params operator.ReconcileParameters[*unstructured.Unstructured]) operator.ReconcileResult {
	obj := params.Resource
	key := names.FromObject(obj)
	current := obj.UnstructuredContent()

	f.mu.Lock()
	previous, seen := f.previous[key]
	f.mu.Unlock()

	rk, err := kinds.ResolveOrUnknown(ctx, f.provider, obj.GetAPIVersion(), obj.GetKind())
	if err != nil {
		return operator.ReconcileResult{Error: err, Requeue: true}
	}

	diff := patch.Params{Kind: rk, Apply: current}
	if seen {
		diff.LastApplied = previous
		diff.Live = previous
	}
	p, err := patch.CreateJSONPatch(diff)
	if err != nil {
		// The manifest itself is malformed. Retrying cannot help.
		return operator.ReconcileResult{Error: err}
	}

	f.mu.Lock()
	f.previous[key] = current
	f.mu.Unlock()

	if p.IsEmpty() {
		return operator.ReconcileResult{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return operator.ReconcileResult{Error: err}
	}
	fmt.Fprintf(f.out, "%s %s %s\n", obj.GetKind(), key, data)
	return operator.ReconcileResult{}
}
