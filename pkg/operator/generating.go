package operator

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/giantswarm/kopkit/internal/events"
	"github.com/giantswarm/kopkit/pkg/kinds"
	"github.com/giantswarm/kopkit/pkg/logging"
	"github.com/giantswarm/kopkit/pkg/names"
	"github.com/giantswarm/kopkit/pkg/patch"
)

const reconcilerSubsystem = "Reconciler"

// GeneratingReconciler creates or patches the objects a Generator derives
// from the primary resource. Each object is owned by the primary resource
// and carries its last applied configuration, so later runs compute a
// three-way patch against the live object found among the related resources.
type GeneratingReconciler[T client.Object] struct {
	generator    Generator[T]
	client       client.Client
	kinds        kinds.Provider
	fieldManager string
	events       *events.Generator
}

// NewGeneratingReconciler returns a reconciler writing through c. A nil
// provider patches every kind with the Unknown strategy.
func NewGeneratingReconciler[T client.Object](generator Generator[T], c client.Client, provider kinds.Provider, fieldManager string) *GeneratingReconciler[T] {
	if fieldManager == "" {
		fieldManager = DefaultFieldManager
	}
	return &GeneratingReconciler[T]{
		generator:    generator,
		client:       c,
		kinds:        provider,
		fieldManager: fieldManager,
	}
}

// WithEventRecorder makes r record an Event on the primary resource for
// every object it creates or patches, and for every failure.
func (r *GeneratingReconciler[T]) WithEventRecorder(recorder record.EventRecorder) *GeneratingReconciler[T] {
	r.events = events.NewGenerator(recorder)
	return r
}

// Reconcile implements Reconciler.
func (r *GeneratingReconciler[T]) Reconcile(ctx context.Context, params ReconcileParameters[T]) ReconcileResult {
	generated, err := r.generator.Generate(ctx, params.Resource)
	if err != nil {
		r.events.Emit(params.Resource, events.ReasonGenerateFailed, events.EventData{
			Name:      params.Resource.GetName(),
			Namespace: params.Resource.GetNamespace(),
			Error:     err.Error(),
		})
		return ReconcileResult{Error: fmt.Errorf("generating resources: %w", err), Requeue: true}
	}
	if !generated.ShouldReconcile {
		return ReconcileResult{}
	}

	for _, desired := range generated.Resources {
		if err := r.apply(ctx, params, desired); err != nil {
			return ReconcileResult{Error: wrapAPIError(err), Requeue: true}
		}
	}
	return ReconcileResult{}
}

func (r *GeneratingReconciler[T]) apply(ctx context.Context, params ReconcileParameters[T], desired client.Object) error {
	scheme := r.client.Scheme()
	owner := params.Resource

	gvk, err := apiutil.GVKForObject(desired, scheme)
	if err != nil {
		return fmt.Errorf("resolving kind of %T: %w", desired, err)
	}

	desired = desired.DeepCopyObject().(client.Object)
	if desired.GetNamespace() == "" {
		desired.SetNamespace(owner.GetNamespace())
	}
	if err := controllerutil.SetControllerReference(owner, desired, scheme); err != nil {
		return fmt.Errorf("setting owner of %s %s: %w", gvk.Kind, names.FromObject(desired), err)
	}

	applyDoc, err := r.applyDocument(gvk, desired)
	if err != nil {
		return err
	}

	data := events.EventData{Kind: gvk.Kind, Name: desired.GetName(), Namespace: desired.GetNamespace()}
	err = r.createOrPatch(ctx, params, gvk, desired, applyDoc, &data)
	if err != nil {
		data.Error = err.Error()
		r.events.Emit(owner, events.ReasonApplyFailed, data)
	}
	return err
}

func (r *GeneratingReconciler[T]) createOrPatch(ctx context.Context, params ReconcileParameters[T], gvk schema.GroupVersionKind, desired client.Object, applyDoc map[string]interface{}, data *events.EventData) error {
	key := names.ForObject(gvk, desired)
	live, ok := params.RelatedResources[key]
	if !ok {
		logging.Info(reconcilerSubsystem, "Creating %s", key)
		obj := &unstructured.Unstructured{Object: applyDoc}
		if err := r.client.Create(ctx, obj, client.FieldOwner(r.fieldManager)); err != nil {
			return err
		}
		r.events.Emit(params.Resource, events.ReasonCreated, *data)
		return nil
	}

	liveDoc, err := toDocument(gvk, live)
	if err != nil {
		return fmt.Errorf("converting live %s: %w", key, err)
	}
	lastApplied, err := lastAppliedOf(live)
	if err != nil {
		return fmt.Errorf("reading last applied configuration of %s: %w", key, err)
	}

	kind, err := kinds.ResolveOrUnknown(ctx, r.kinds, gvk.GroupVersion().String(), gvk.Kind)
	if err != nil {
		return fmt.Errorf("resolving schema of %s: %w", gvk.Kind, err)
	}

	p, err := patch.CreateJSONPatch(patch.Params{
		Kind:        kind,
		Apply:       applyDoc,
		LastApplied: lastApplied,
		Live:        liveDoc,
	})
	if err != nil {
		return fmt.Errorf("computing patch for %s: %w", key, err)
	}
	if p.IsEmpty() {
		logging.Debug(reconcilerSubsystem, "%s is up to date", key)
		return nil
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding patch for %s: %w", key, err)
	}
	logging.Info(reconcilerSubsystem, "Patching %s with %d operations", key, len(p))

	target := &unstructured.Unstructured{}
	target.SetGroupVersionKind(gvk)
	target.SetNamespace(desired.GetNamespace())
	target.SetName(desired.GetName())
	if err := r.client.Patch(ctx, target, client.RawPatch(types.JSONPatchType, raw), client.FieldOwner(r.fieldManager)); err != nil {
		return err
	}
	data.Operations = len(p)
	r.events.Emit(params.Resource, events.ReasonPatched, *data)
	return nil
}

// applyDocument renders desired as the document to apply: nulls and status
// are dropped and the last-applied annotation holds the document itself.
func (r *GeneratingReconciler[T]) applyDocument(gvk schema.GroupVersionKind, desired client.Object) (map[string]interface{}, error) {
	doc, err := toDocument(gvk, desired)
	if err != nil {
		return nil, fmt.Errorf("converting %s %s: %w", gvk.Kind, names.FromObject(desired), err)
	}
	delete(doc, "status")
	pruneNulls(doc)

	u := &unstructured.Unstructured{Object: doc}
	annotations := u.GetAnnotations()
	delete(annotations, corev1.LastAppliedConfigAnnotation)
	u.SetAnnotations(annotations)

	encoded, err := json.Marshal(u.Object)
	if err != nil {
		return nil, fmt.Errorf("encoding last applied configuration: %w", err)
	}
	if annotations == nil {
		annotations = map[string]string{}
	}
	annotations[corev1.LastAppliedConfigAnnotation] = string(encoded)
	u.SetAnnotations(annotations)
	return u.Object, nil
}

func toDocument(gvk schema.GroupVersionKind, obj client.Object) (map[string]interface{}, error) {
	doc, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, err
	}
	doc = runtime.DeepCopyJSON(doc)
	doc["apiVersion"] = gvk.GroupVersion().String()
	doc["kind"] = gvk.Kind
	return doc, nil
}

func lastAppliedOf(live client.Object) (interface{}, error) {
	raw := live.GetAnnotations()[corev1.LastAppliedConfigAnnotation]
	if raw == "" {
		return nil, nil
	}
	var doc interface{}
	if err := utiljson.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// pruneNulls removes null values and maps left empty by the removal.
func pruneNulls(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case map[string]interface{}:
			pruneNulls(val)
			if len(val) == 0 {
				delete(m, k)
			}
		case []interface{}:
			for _, item := range val {
				if obj, ok := item.(map[string]interface{}); ok {
					pruneNulls(obj)
				}
			}
		}
	}
}
