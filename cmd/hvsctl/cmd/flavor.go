package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/veridian/hvs/pkg/audit"
	"github.com/veridian/hvs/pkg/clierror"
	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/store"
)

func init() {
	rootCmd.AddCommand(flavorCmd)
	flavorCmd.AddCommand(flavorListCmd)
	flavorCmd.AddCommand(flavorImportCmd)
	flavorCmd.AddCommand(flavorImportCorimCmd)
	flavorCmd.AddCommand(flavorRemoveCmd)

	flavorListCmd.Flags().StringP("category", "c", "", "Filter by category (PLATFORM, OS, HOST_UNIQUE, SOFTWARE, ASSET_TAG)")
	flavorImportCmd.Flags().StringP("label", "l", "", "Human-readable flavor label")
	flavorImportCmd.Flags().String("hardware-uuid", "", "Bind a HOST_UNIQUE or ASSET_TAG flavor to a hardware UUID")
	flavorImportCorimCmd.Flags().Bool("base64", false, "Input file is base64-encoded CBOR")
	flavorImportCorimCmd.Flags().StringP("group", "g", "", "Also add the imported flavor to this group")
	flavorImportCmd.Flags().StringP("group", "g", "", "Also add the imported flavor to this group")
}

var flavorCmd = &cobra.Command{
	Use:   "flavor",
	Short: "Manage measurement baselines",
	Long:  `Commands to import, list, and remove flavors (measurement baselines).`,
}

var flavorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flavors",
	RunE: func(cmd *cobra.Command, args []string) error {
		var category flavor.Category
		if raw, _ := cmd.Flags().GetString("category"); raw != "" {
			c, err := flavor.ParseCategory(raw)
			if err != nil {
				return err
			}
			category = c
		}

		flavors, err := hvsStore.ListFlavors(category)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if len(flavors) == 0 {
				fmt.Println("[]")
				return nil
			}
			return formatOutput(flavors)
		}

		if len(flavors) == 0 {
			fmt.Println("No flavors found. Use 'hvsctl flavor import' to add one.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tLABEL\tHARDWARE UUID\tCREATED")
		for _, f := range flavors {
			hw := f.HardwareUUID
			if hw == "" {
				hw = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				f.ID, f.Category, f.Label, hw, f.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	},
}

var flavorImportCmd = &cobra.Command{
	Use:   "import <category> <content-file>",
	Short: "Import a flavor from a JSON content document",
	Long: `Import a measurement baseline. The content file is a JSON document with
the expected measurements, e.g.:

  {"measurements": {"bios": "a1b2c3...", "pcr0": "d4e5f6..."}}

Examples:
  hvsctl flavor import PLATFORM bios-1.4.json --label bios-1.4
  hvsctl flavor import HOST_UNIQUE node7.json --hardware-uuid 4c4c4544-... --label node7`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := flavor.ParseCategory(args[0])
		if err != nil {
			return err
		}

		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read content file: %w", err)
		}
		if !json.Valid(content) {
			return fmt.Errorf("content file is not valid JSON")
		}

		label, _ := cmd.Flags().GetString("label")
		if label == "" {
			label = strings.TrimSuffix(args[1], ".json")
		}
		hwUUID, _ := cmd.Flags().GetString("hardware-uuid")
		if hwUUID != "" && !category.HostUnique() {
			return fmt.Errorf("--hardware-uuid only applies to HOST_UNIQUE and ASSET_TAG flavors")
		}

		f := &flavor.Flavor{
			Category:     category,
			Label:        label,
			HardwareUUID: hwUUID,
			Content:      content,
		}
		if err := hvsStore.AddFlavor(f); err != nil {
			return err
		}
		if err := addToGroupFlag(cmd, f.ID); err != nil {
			return err
		}
		recordImport(f, args[1])

		if outputFormat != "table" {
			return formatOutput(f)
		}
		fmt.Printf("Imported flavor %s (%s)\n", f.ID, f.Category)
		return nil
	},
}

var flavorImportCorimCmd = &cobra.Command{
	Use:   "import-corim <bundle-file>",
	Short: "Import a vendor reference-value bundle as a flavor",
	Long: `Convert a CBOR-encoded reference-value bundle (as shipped in vendor
reference integrity manifests) into a PLATFORM flavor.

Examples:
  hvsctl flavor import-corim vendor-rim.cbor
  hvsctl flavor import-corim vendor-rim.b64 --base64 --group automatic`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read bundle file: %w", err)
		}

		var f *flavor.Flavor
		if b64, _ := cmd.Flags().GetBool("base64"); b64 {
			f, err = flavor.ImportBase64(strings.TrimSpace(string(data)))
		} else {
			f, err = flavor.ImportBundle(data)
		}
		if err != nil {
			return err
		}

		if err := hvsStore.AddFlavor(f); err != nil {
			return err
		}
		if err := addToGroupFlag(cmd, f.ID); err != nil {
			return err
		}
		recordImport(f, args[0])

		if outputFormat != "table" {
			return formatOutput(f)
		}
		fmt.Printf("Imported flavor %s (%s) from bundle\n", f.ID, f.Label)
		return nil
	},
}

var flavorRemoveCmd = &cobra.Command{
	Use:   "remove <flavor-id>",
	Short: "Remove a flavor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hvsStore.DeleteFlavor(args[0]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return clierror.FlavorNotFound(args[0])
			}
			return err
		}
		fmt.Printf("Removed flavor %s\n", args[0])
		return nil
	},
}

func recordImport(f *flavor.Flavor, source string) {
	recorder, closeAudit := auditRecorder()
	defer closeAudit()
	recorder.Record(audit.NewFlavorImported(f.ID, string(f.Category), source))
}

// addToGroupFlag links a freshly imported flavor to the group named by the
// --group flag, if set. The group is created on demand.
func addToGroupFlag(cmd *cobra.Command, flavorID string) error {
	name, _ := cmd.Flags().GetString("group")
	if name == "" {
		return nil
	}
	g, err := hvsStore.EnsureGroup(name)
	if err != nil {
		return err
	}
	return hvsStore.AddFlavorToGroup(g.ID, flavorID)
}
