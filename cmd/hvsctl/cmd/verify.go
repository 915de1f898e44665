package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/veridian/hvs/pkg/clierror"
	"github.com/veridian/hvs/pkg/store"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(queueCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportListCmd)
	queueCmd.AddCommand(queueListCmd)

	verifyCmd.Flags().BoolP("force", "f", false, "Reconnect and re-verify even when the trust cache is valid")
	verifyCmd.Flags().Bool("run", false, "Process the queue now instead of leaving it to a running worker")
	reportShowCmd.Flags().Bool("assertion", false, "Print only the signed assertion (JWS compact form)")
	reportListCmd.Flags().IntP("limit", "n", 10, "Number of reports to show")
	queueCmd.PersistentFlags().String("state", "", "Filter by state (NEW, RUNNING, COMPLETED, ERROR, TIMEOUT)")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <host-name>",
	Short: "Queue a host for verification",
	Long: `Queue a verification of a host's measurements against its flavor groups.
Duplicate requests for a host collapse into the pending queue entry.

Examples:
  hvsctl verify node-01
  hvsctl verify node-01 --force --run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		entry, err := hvsStore.EnqueueVerification(h.ID, force)
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Printf("Host %s already has a pending verification\n", h.Name)
		} else {
			fmt.Printf("Queued verification %s for host %s\n", entry.ID, h.Name)
		}

		if run, _ := cmd.Flags().GetBool("run"); run {
			pool, cleanup, err := buildPool()
			if err != nil {
				return err
			}
			defer cleanup()
			n := pool.RunOnce(cmd.Context())
			fmt.Printf("Processed %d queue entries\n", n)
		}
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect signed trust reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <host-name>",
	Short: "Show a host's latest trust report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		rep, err := hvsStore.LatestReport(h.ID)
		if err != nil {
			return err
		}
		if rep == nil {
			return clierror.ReportNotFound(h.Name)
		}

		if assertionOnly, _ := cmd.Flags().GetBool("assertion"); assertionOnly {
			fmt.Println(rep.SignedAssertion)
			return nil
		}
		if outputFormat != "table" {
			return formatOutput(rep)
		}

		printReport(h.Name, rep)
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list <host-name>",
	Short: "List a host's trust reports, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := lookupHost(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		reports, err := hvsStore.ListReports(h.ID, limit)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if len(reports) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(reports)
		}

		if len(reports) == 0 {
			fmt.Printf("No reports for host %s yet.\n", h.Name)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTRUSTED\tFAULTS\tCREATED\tEXPIRES")
		for _, rep := range reports {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				rep.ID, trustedWord(rep.TrustReport.Trusted()), rep.TrustReport.FaultCount(),
				rep.CreatedAt.Format(time.RFC3339), rep.ExpiresAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}

func printReport(hostName string, rep *store.Report) {
	fmt.Printf("Host:    %s\n", hostName)
	fmt.Printf("Report:  %s\n", rep.ID)
	fmt.Printf("Overall: %s\n", trustedWord(rep.TrustReport.Trusted()))
	fmt.Printf("Valid:   %s to %s\n",
		rep.CreatedAt.Format(time.RFC3339), rep.ExpiresAt.Format(time.RFC3339))
	if time.Now().After(rep.ExpiresAt) {
		color.Yellow("Warning: report has expired")
	}

	fmt.Println("Markers:")
	for _, marker := range rep.TrustReport.Markers() {
		fmt.Printf("  %-12s %s\n", marker, trustedWord(rep.TrustReport.TrustedForMarker(marker)))
	}

	faults := rep.TrustReport.Faults()
	if len(faults) > 0 {
		fmt.Println("Faults:")
		for _, f := range faults {
			fmt.Printf("  %s: %s\n", f.Name, f.Description)
		}
	}
}

func trustedWord(trusted bool) string {
	if trusted {
		return color.GreenString("TRUSTED")
	}
	return color.RedString("UNTRUSTED")
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the verification queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List verification queue entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("state")
		var state store.QueueState
		if raw != "" {
			state = store.QueueState(raw)
		}

		entries, err := hvsStore.ListQueueEntries(state)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if len(entries) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(entries)
		}

		if len(entries) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHOST\tSTATE\tFORCE\tMESSAGE\tUPDATED")
		for _, e := range entries {
			msg := e.Message
			if msg == "" {
				msg = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
				e.ID, e.HostID, e.State, e.ForceUpdate, msg, e.UpdatedAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}
