package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/testbank"
	"github.com/xraph/testbank/contract"
)

func newEntryPointsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "entrypoints [contract]",
		Short: "List the entry points a contract registers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := testbank.ContractName
			if len(args) == 1 {
				name = args[0]
			}
			c, err := a.contractFor(name)
			if err != nil {
				return err
			}

			r := contract.NewRegistry()
			c.Register(r)
			eps := r.EntryPoints()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(eps)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tID\tNAME\tINPUT\tOUTPUT")
			for _, ep := range eps {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", ep.Kind, ep.ID, ep.Name, shapeString(ep.Input), shapeString(ep.Output))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func shapeString(s contract.Shape) string {
	if len(s) == 0 {
		return "-"
	}
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = f.Name + " " + f.Type
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
