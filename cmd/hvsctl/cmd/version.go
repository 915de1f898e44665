package cmd

import (
	"github.com/spf13/cobra"

	"github.com/veridian/hvs/internal/version"
	"github.com/veridian/hvs/internal/versioncheck"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

// newVersionCmd creates the version command with the default checker.
func newVersionCmd() *cobra.Command {
	return newVersionCmdWithChecker(nil)
}

// newVersionCmdWithChecker creates the version command with an injected
// checker. A nil checker is resolved lazily so tests can substitute a mock
// GitHub endpoint and cache path.
func newVersionCmdWithChecker(checker *versioncheck.Checker) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the hvsctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("hvsctl version %s\n", version.Version)
			if !check {
				return nil
			}

			c := checker
			if c == nil {
				c = versioncheck.NewChecker()
			}
			result := c.Check(version.Version)

			if result.LatestVersion == "" {
				cmd.Printf("Unable to check for updates: %v\n", result.Error)
				return nil
			}
			if !result.UpdateAvailable {
				cmd.Println("You are running the latest version.")
				return nil
			}

			cmd.Printf("\nA newer version is available: %s\n", result.LatestVersion)
			if result.ReleaseURL != "" {
				cmd.Printf("Release notes: %s\n", result.ReleaseURL)
			}
			cmd.Printf("To upgrade: %s\n", result.UpgradeCommand)
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
