package operator

import (
	"time"

	"github.com/giantswarm/kopkit/pkg/queue"
)

// DefaultFieldManager is the field manager used when none is configured.
const DefaultFieldManager = "kopkit"

// Options tune a Controller. Zero values are replaced by Default.
type Options struct {
	// Name identifies the controller in logs, metrics and the queue.
	Name string `yaml:"name"`

	// Workers is the number of concurrent reconcile workers.
	Workers int `yaml:"workers"`

	// BaseDelay and MaxDelay bound the per-resource retry backoff.
	BaseDelay time.Duration `yaml:"baseDelay"`
	MaxDelay  time.Duration `yaml:"maxDelay"`

	// QPS and Burst bound the overall retry rate.
	QPS   float64 `yaml:"qps"`
	Burst int     `yaml:"burst"`

	// ReconcileTimeout bounds a single reconcile attempt. Zero disables it.
	ReconcileTimeout time.Duration `yaml:"reconcileTimeout"`

	// FieldManager is recorded on every write the GeneratingReconciler makes.
	FieldManager string `yaml:"fieldManager"`
}

// Default returns o with unset fields filled in.
func (o Options) Default() Options {
	q := queue.DefaultOptions()
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = q.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = q.MaxDelay
	}
	if o.QPS <= 0 {
		o.QPS = q.QPS
	}
	if o.Burst <= 0 {
		o.Burst = q.Burst
	}
	if o.FieldManager == "" {
		o.FieldManager = DefaultFieldManager
	}
	return o
}

func (o Options) queueOptions() queue.Options {
	return queue.Options{
		Name:      o.Name,
		BaseDelay: o.BaseDelay,
		MaxDelay:  o.MaxDelay,
		QPS:       o.QPS,
		Burst:     o.Burst,
	}
}
