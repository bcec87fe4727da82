package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/frahmantamala/upi-sandbox/internal/sandbox"
	"github.com/frahmantamala/upi-sandbox/internal/upiclient"
	"github.com/spf13/cobra"
)

var vpasCmd = &cobra.Command{
	Use:   "vpas",
	Short: "List sandbox test VPAs and their outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		policies := sandbox.NewPolicyTableFromConfig(cfg.Sandbox, nil)

		vpas := upiclient.TestVPAs()
		names := make([]string, 0, len(vpas))
		for name := range vpas {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVPA\tOUTCOME\tDELAY\tPOLICY")
		for _, name := range names {
			vpa := vpas[name]
			p, matched := policies.Lookup(vpa)
			outcome := "captured"
			if !p.Succeeds {
				outcome = "failed (" + p.FailureCode() + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, vpa, outcome, p.Delay, matched)
		}
		return w.Flush()
	},
}
