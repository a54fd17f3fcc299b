package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/giantswarm/kopkit/internal/formatting"
	"github.com/giantswarm/kopkit/pkg/kinds"
)

func newKindsCmd() *cobra.Command {
	var flags schemaFlags

	cmd := &cobra.Command{
		Use:   "kinds [APIVERSION KIND [PATH]]",
		Short: "Show the merge strategies of a resource kind",
		Long: `Without arguments, lists the kinds the configured schema sources know.

With APIVERSION and KIND, prints the merge strategy of every top-level
property of that kind. PATH is a JSON pointer selecting a nested element,
for example /spec/template/spec/containers. Segments below a list or map
select its item type whatever their value.`,
		Example: `  kopkit kinds --openapi swagger.json
  kopkit kinds --openapi swagger.json apps/v1 Deployment /spec/template/spec`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 || len(args) > 3 {
				return fmt.Errorf("expected no arguments or APIVERSION KIND [PATH], got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, listers, err := buildProvider(flags.resolve(cmd, loadedConfig.Schema))
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return listKinds(cmd, listers)
			}
			path := ""
			if len(args) == 3 {
				path = args[2]
			}
			return describeKind(cmd, provider, args[0], args[1], path)
		},
	}
	flags.register(cmd)

	return cmd
}

func listKinds(cmd *cobra.Command, listers []kinds.Lister) error {
	seen := make(map[[2]string]bool)
	var all [][2]string
	for _, l := range listers {
		listed, err := l.Kinds(cmd.Context())
		if err != nil {
			return err
		}
		for _, k := range listed {
			if !seen[k] {
				seen[k] = true
				all = append(all, k)
			}
		}
	}

	if len(all) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", text.FgYellow.Sprint("No kinds found. Configure --openapi, --crd or --from-cluster."))
		return nil
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i][0] != all[j][0] {
			return all[i][0] < all[j][0]
		}
		return all[i][1] < all[j][1]
	})

	t := formatting.NewTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"APIVERSION", "KIND"})
	for _, k := range all {
		t.AppendRow(table.Row{k[0], k[1]})
	}
	t.Render()
	return nil
}

func describeKind(cmd *cobra.Command, provider kinds.Provider, apiVersion, kind, path string) error {
	rk, err := provider.GetResourceKind(cmd.Context(), apiVersion, kind)
	if err != nil {
		return err
	}
	if rk == nil {
		return fmt.Errorf("kind %s.%s is not known to the configured schema sources", kind, apiVersion)
	}

	element, err := elementAt(rk.Schema(), path)
	if err != nil {
		return err
	}

	t := formatting.NewTable(cmd.OutOrStdout())
	t.SetTitle("%s.%s %s: %s", kind, apiVersion, displayPath(path), element.MergeStrategy())
	t.AppendHeader(table.Row{"PROPERTY", "STRATEGY", "MERGE KEY", "ITEMS"})

	if element.MergeStrategy().IsList() || element.MergeStrategy() == kinds.MergeMap {
		t.AppendRow(elementRow("*", element.CollectionElement()))
	}
	for _, name := range element.PropertyNames() {
		t.AppendRow(elementRow(name, element.Property(name)))
	}
	t.Render()
	return nil
}

func elementRow(name string, e *kinds.Element) table.Row {
	items := ""
	if e.MergeStrategy().IsList() || e.MergeStrategy() == kinds.MergeMap {
		items = e.CollectionElement().MergeStrategy().String()
	}
	return table.Row{name, e.MergeStrategy().String(), e.MergeKey(), items}
}

// elementAt walks a JSON pointer through the element tree.
func elementAt(root *kinds.Element, path string) (*kinds.Element, error) {
	if path == "" || path == "/" {
		return root, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("path %q must start with /", path)
	}

	e := root
	for _, segment := range strings.Split(path[1:], "/") {
		switch {
		case e.MergeStrategy().IsList() || e.MergeStrategy() == kinds.MergeMap:
			e = e.CollectionElement()
		case e.MergeStrategy() == kinds.Unknown:
			return e, nil
		default:
			e = e.Property(jsonpointer.Unescape(segment))
		}
	}
	return e, nil
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
