package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridian/hvs/pkg/clierror"
	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/store"
)

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupShowCmd)
	groupCmd.AddCommand(groupAddFlavorCmd)

	groupCreateCmd.Flags().String("policy-file", "", "JSON file with the group's match policy")
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage flavor groups",
	Long: `Commands to manage flavor groups. A group collects flavors and carries
the match policy that decides how its flavors must verify.`,
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a flavor group",
	Long: `Create a flavor group. Well-known names (automatic, host_unique,
platform_software, workload_software) always get their built-in policy.
Other groups take the policy from --policy-file, a JSON document mapping
categories to match rules:

  {"PLATFORM": {"match_type": "ANY_OF", "required": "REQUIRED"},
   "OS":       {"match_type": "LATEST", "required": "REQUIRED_IF_DEFINED"}}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var policy flavor.MatchPolicy
		if path, _ := cmd.Flags().GetString("policy-file"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read policy file: %w", err)
			}
			if err := json.Unmarshal(data, &policy); err != nil {
				return fmt.Errorf("failed to parse policy file: %w", err)
			}
		}

		g, err := hvsStore.CreateGroup(args[0], policy)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			return formatOutput(g)
		}
		fmt.Printf("Created group %s (%s)\n", g.Name, g.ID)
		return nil
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flavor groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := hvsStore.ListGroups()
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if len(groups) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(groups)
		}

		if len(groups) == 0 {
			fmt.Println("No flavor groups found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORIES\tCREATED")
		for _, g := range groups {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				g.ID, g.Name, len(g.Policy), g.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}

var groupShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a group's policy and member flavors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := lookupGroup(args[0])
		if err != nil {
			return err
		}
		var members []*flavor.Flavor
		for _, c := range flavor.Categories() {
			fs, err := hvsStore.FlavorsInGroup(g.ID, c)
			if err != nil {
				return err
			}
			members = append(members, fs...)
		}

		if outputFormat != "table" {
			return formatOutput(struct {
				Group   *flavor.Group    `json:"group" yaml:"group"`
				Flavors []*flavor.Flavor `json:"flavors" yaml:"flavors"`
			}{g, members})
		}

		fmt.Printf("Group:   %s\n", g.Name)
		fmt.Printf("ID:      %s\n", g.ID)
		fmt.Printf("Created: %s\n", g.CreatedAt.Format(time.RFC3339))
		if len(g.Policy) == 0 {
			fmt.Println("Policy:  none (host-unique flavors match by hardware UUID)")
		} else {
			fmt.Println("Policy:")
			for _, c := range flavor.Categories() {
				rule, ok := g.Policy.Rule(c)
				if !ok {
					continue
				}
				fmt.Printf("  %-12s %s, %s\n", c, rule.MatchType, rule.Required)
			}
		}

		fmt.Printf("Flavors: %d\n", len(members))
		if len(members) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  ID\tCATEGORY\tLABEL")
			for _, f := range members {
				fmt.Fprintf(w, "  %s\t%s\t%s\n", f.ID, f.Category, f.Label)
			}
			w.Flush()
		}
		return nil
	},
}

var groupAddFlavorCmd = &cobra.Command{
	Use:   "add-flavor <group-name> <flavor-id>",
	Short: "Add a flavor to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := lookupGroup(args[0])
		if err != nil {
			return err
		}
		if _, err := hvsStore.GetFlavor(args[1]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return clierror.FlavorNotFound(args[1])
			}
			return err
		}
		if err := hvsStore.AddFlavorToGroup(g.ID, args[1]); err != nil {
			return err
		}
		fmt.Printf("Added flavor %s to group %s\n", args[1], g.Name)
		return nil
	},
}
