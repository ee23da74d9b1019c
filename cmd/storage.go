package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pitt-crc/starfish-api-client/starfish"
)

var (
	showPaths      bool
	concurrency    int
	membershipType string
)

// volumesCmd represents the volumes command
var volumesCmd = &cobra.Command{
	Use:   "volumes",
	Short: "List the volumes accessible via the API server",
	Long: `List the volumes accessible via the API server.

With --paths the top level directories of every volume are fetched as well,
several volumes at a time.`,
	PreRunE: initializeApp,
	RunE:    runVolumes,
}

// subpathsCmd represents the subpaths command
var subpathsCmd = &cobra.Command{
	Use:     "subpaths VOLUME:PATH",
	Short:   "List the top level directories under a volume path",
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeApp,
	RunE:    runSubpaths,
}

// membershipCmd represents the membership command
var membershipCmd = &cobra.Command{
	Use:     "membership VOLUME",
	Short:   "Show the user or group membership mapping of a volume",
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeApp,
	RunE:    runMembership,
}

func init() {
	rootCmd.AddCommand(volumesCmd)
	rootCmd.AddCommand(subpathsCmd)
	rootCmd.AddCommand(membershipCmd)

	volumesCmd.Flags().BoolVar(&showPaths, "paths", false, "also list the top level directories of each volume")
	volumesCmd.Flags().IntVar(&concurrency, "concurrency", starfish.DefaultConcurrency, "volumes listed at once with --paths")
	membershipCmd.Flags().StringVarP(&membershipType, "type", "t", string(starfish.MembershipGroup), "membership type (user/group)")
}

func runVolumes(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	names, err := client.VolumeNames(ctx)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Println("No volumes found.")
		return nil
	}

	if !showPaths {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	logger.Info().Int("volumes", len(names)).Int("concurrency", concurrency).Msg("Listing volume contents")
	subpaths, err := client.VolumeSubpaths(ctx, names, concurrency)
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Printf("%s (%d)\n", name, len(subpaths[name]))
		for _, p := range subpaths[name] {
			fmt.Printf("  • %s\n", p)
		}
	}
	return nil
}

func runSubpaths(cmd *cobra.Command, args []string) error {
	volpath := args[0]
	if !strings.Contains(volpath, ":") {
		volpath += ":"
	}

	paths, err := client.Subpaths(cmd.Context(), volpath)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func runMembership(cmd *cobra.Command, args []string) error {
	raw, err := client.VolumeMembership(cmd.Context(), args[0], starfish.MembershipType(membershipType))
	if err != nil {
		return err
	}
	return printJSON(raw)
}

func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(os.Stdout)
	return err
}
