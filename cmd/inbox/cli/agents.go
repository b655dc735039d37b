package cli

import (
	"AgentDesk/entity"
	"bufio"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents visible to the operator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, err := opts.connect(ctx, bufio.NewReader(os.Stdin), cmd.OutOrStdout(), opts.logger())
		if err != nil {
			return err
		}
		defer func() { _ = client.Logout(ctx) }()

		agents, err := client.ListAgents(ctx)
		if err != nil {
			return err
		}
		printAgents(cmd.OutOrStdout(), agents)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func printAgents(out io.Writer, agents []entity.Agent) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tWHATSAPP\tACTIVE")
	for _, a := range agents {
		outbound := "no"
		if a.OutboundReady() {
			outbound = a.WhatsApp.PhoneNumberID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", a.Name, a.ID, outbound, a.Active)
	}
	_ = tw.Flush()
}
