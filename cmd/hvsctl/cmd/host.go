package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridian/hvs/pkg/hostconn"
	"github.com/veridian/hvs/pkg/store"
)

func init() {
	rootCmd.AddCommand(hostCmd)
	hostCmd.AddCommand(hostAddCmd)
	hostCmd.AddCommand(hostListCmd)
	hostCmd.AddCommand(hostShowCmd)
	hostCmd.AddCommand(hostRemoveCmd)
	hostCmd.AddCommand(hostAddToGroupCmd)
	hostCmd.AddCommand(hostStatusCmd)

	hostAddCmd.Flags().StringP("connection-string", "c", "", "Agent endpoint, e.g. https://node-01:1443 (required)")
	hostAddCmd.Flags().Bool("insecure", false, "Skip TLS certificate verification for this host")
	hostAddCmd.Flags().String("ca-cert", "", "PEM file with the CA certificate to trust for this host")
	hostAddCmd.Flags().StringSliceP("group", "g", nil, "Flavor groups to join (default: automatic)")
	hostAddCmd.MarkFlagRequired("connection-string")

	hostStatusCmd.Flags().IntP("limit", "n", 10, "Number of history rows to show")
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage registered hosts",
	Long:  `Commands to register hosts, inspect their connection status, and manage group memberships.`,
}

var hostAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a host for verification",
	Long: `Register a host. The host joins the automatic flavor group unless other
groups are given, and is queued for an initial verification.

Examples:
  hvsctl host add node-01 -c https://node-01:1443
  hvsctl host add node-02 -c https://node-02:1443 --ca-cert fleet-ca.pem -g automatic -g workload_software`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		connStr, _ := cmd.Flags().GetString("connection-string")
		insecure, _ := cmd.Flags().GetBool("insecure")
		caCertPath, _ := cmd.Flags().GetString("ca-cert")
		groups, _ := cmd.Flags().GetStringSlice("group")
		if len(groups) == 0 {
			groups = []string{"automatic"}
		}

		var tlsPolicy *hostconn.TLSPolicy
		if insecure {
			tlsPolicy = &hostconn.TLSPolicy{InsecureSkipVerify: true}
		} else if caCertPath != "" {
			pem, err := os.ReadFile(caCertPath)
			if err != nil {
				return fmt.Errorf("failed to read CA certificate: %w", err)
			}
			tlsPolicy = &hostconn.TLSPolicy{CACertPEM: string(pem)}
		}

		h := &store.Host{
			Name:             args[0],
			ConnectionString: connStr,
			TLSPolicy:        tlsPolicy,
		}
		if err := hvsStore.AddHost(h); err != nil {
			return err
		}
		for _, name := range groups {
			g, err := hvsStore.EnsureGroup(name)
			if err != nil {
				return err
			}
			if err := hvsStore.AddHostToGroup(g.ID, h.ID); err != nil {
				return err
			}
		}
		if _, err := hvsStore.EnqueueVerification(h.ID, false); err != nil {
			return err
		}

		if outputFormat != "table" {
			return formatOutput(h)
		}
		fmt.Printf("Registered host %s (%s), queued for verification\n", h.Name, h.ID)
		return nil
	},
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		hosts, err := hvsStore.ListHosts()
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if len(hosts) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(hosts)
		}

		if len(hosts) == 0 {
			fmt.Println("No hosts registered. Use 'hvsctl host add' to register one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCONNECTION\tHARDWARE UUID\tSTATE")
		for _, h := range hosts {
			state := "-"
			if st, err := hvsStore.LatestHostStatus(h.ID); err == nil && st != nil {
				state = string(st.State)
			}
			hw := h.HardwareUUID
			if hw == "" {
				hw = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.ID, h.Name, h.ConnectionString, hw, state)
		}
		w.Flush()
		return nil
	},
}

var hostShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a host's registration and group memberships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		groups, err := hvsStore.HostGroups(h.ID)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			names := make([]string, 0, len(groups))
			for _, g := range groups {
				names = append(names, g.Name)
			}
			return formatOutput(struct {
				Host   *store.Host `json:"host" yaml:"host"`
				Groups []string    `json:"groups" yaml:"groups"`
			}{h, names})
		}

		fmt.Printf("Host:       %s\n", h.Name)
		fmt.Printf("ID:         %s\n", h.ID)
		fmt.Printf("Connection: %s\n", h.ConnectionString)
		if h.HardwareUUID != "" {
			fmt.Printf("HW UUID:    %s\n", h.HardwareUUID)
		}
		if h.TLSPolicy != nil && h.TLSPolicy.InsecureSkipVerify {
			fmt.Println("TLS:        verification disabled")
		}
		fmt.Printf("Created:    %s\n", h.CreatedAt.Format(time.RFC3339))
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		fmt.Printf("Groups:     %s\n", strings.Join(names, ", "))
		return nil
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registered host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		if err := hvsStore.DeleteHost(h.ID); err != nil {
			return err
		}
		fmt.Printf("Removed host %s\n", h.Name)
		return nil
	},
}

var hostAddToGroupCmd = &cobra.Command{
	Use:   "add-to-group <host-name> <group-name>",
	Short: "Add a host to a flavor group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		g, err := hvsStore.EnsureGroup(args[1])
		if err != nil {
			return err
		}
		if err := hvsStore.AddHostToGroup(g.ID, h.ID); err != nil {
			return err
		}
		if _, err := hvsStore.EnqueueVerification(h.ID, false); err != nil {
			return err
		}
		fmt.Printf("Added host %s to group %s, queued for verification\n", h.Name, g.Name)
		return nil
	},
}

var hostStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show a host's connection status history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		history, err := hvsStore.HostStatusHistory(h.ID, limit)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if len(history) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(history)
		}

		if len(history) == 0 {
			fmt.Printf("No status recorded for %s yet.\n", h.Name)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTATE\tMANIFEST")
		for _, st := range history {
			snapshot := "-"
			if st.Manifest != nil {
				snapshot = st.Manifest.HostInfo.HostName
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", st.CreatedAt.Format(time.RFC3339), st.State, snapshot)
		}
		w.Flush()
		return nil
	},
}
