package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kopkit/internal/formatting"
	"github.com/giantswarm/kopkit/pkg/kinds"
	"github.com/giantswarm/kopkit/pkg/logging"
	"github.com/giantswarm/kopkit/pkg/patch"
)

type patchOptions struct {
	apply       string
	lastApplied string
	live        string
	output      string
	result      bool
	schema      schemaFlags
}

func newPatchCmd() *cobra.Command {
	opts := &patchOptions{}

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Compute the three-way JSON patch for a resource",
		Long: `Computes the JSON patch (RFC 6902) that moves the live resource toward the
applied one. Fields present in the last applied configuration but missing
from the applied one are removed; fields neither document mentions are left
alone.

Documents may be JSON or YAML. Use - to read one of them from stdin.

Exit codes:
  0  the patch was computed
  1  the inputs could not be read
  2  a document does not fit the merge strategy its schema declares`,
		Example: `  kopkit patch --apply desired.yaml --last-applied previous.yaml --live live.yaml --openapi swagger.json
  kubectl get deploy web -o yaml | kopkit patch --apply web.yaml --live - --from-cluster --result`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.apply, "apply", "", "Desired state document (required)")
	cmd.Flags().StringVar(&opts.lastApplied, "last-applied", "", "Previously applied document")
	cmd.Flags().StringVar(&opts.live, "live", "", "Live state document (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")
	cmd.Flags().BoolVar(&opts.result, "result", false, "Print the live document with the patch applied instead of the patch")
	opts.schema.register(cmd)
	_ = cmd.MarkFlagRequired("apply")
	_ = cmd.MarkFlagRequired("live")

	return cmd
}

func runPatch(cmd *cobra.Command, opts *patchOptions) error {
	format, err := formatting.ParseOutputFormat(opts.output)
	if err != nil {
		return err
	}

	apply, err := readDocument(cmd, opts.apply)
	if err != nil {
		return err
	}
	lastApplied, err := readDocument(cmd, opts.lastApplied)
	if err != nil {
		return err
	}
	live, err := readDocument(cmd, opts.live)
	if err != nil {
		return err
	}

	provider, _, err := buildProvider(opts.schema.resolve(cmd, loadedConfig.Schema))
	if err != nil {
		return err
	}
	apiVersion, kind := typeOf(apply, live)
	rk, err := kinds.ResolveOrUnknown(cmd.Context(), provider, apiVersion, kind)
	if err != nil {
		return err
	}
	logging.Debug("CLI", "Using %s strategy at the root of %s.%s", rk.Schema().MergeStrategy(), kind, apiVersion)

	p, err := patch.CreateJSONPatch(patch.Params{
		Kind:        rk,
		Apply:       apply,
		LastApplied: lastApplied,
		Live:        live,
	})
	if err != nil {
		return err
	}

	var out []byte
	if opts.result {
		liveJSON, err := json.Marshal(live)
		if err != nil {
			return err
		}
		if out, err = p.Apply(liveJSON); err != nil {
			return fmt.Errorf("failed to apply patch: %w", err)
		}
	} else if out, err = json.Marshal(p); err != nil {
		return err
	}

	return formatting.WriteDocument(cmd.OutOrStdout(), out, format)
}

// typeOf reads apiVersion and kind from the first document that has them.
func typeOf(docs ...interface{}) (apiVersion, kind string) {
	for _, doc := range docs {
		m, ok := doc.(map[string]interface{})
		if !ok {
			continue
		}
		apiVersion, _ = m["apiVersion"].(string)
		kind, _ = m["kind"].(string)
		if kind != "" {
			return apiVersion, kind
		}
	}
	return "", ""
}
