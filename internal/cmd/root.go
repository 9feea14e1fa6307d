package cmd

import (
	"github.com/CompassSecurity/codechecker/internal/cmd/common"
	"github.com/CompassSecurity/codechecker/internal/cmd/scan"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "codechecker",
		Short:   "Fail builds that reference unallowed domains or contain risky strings",
		Long:    `Codechecker scans the output of a build for references to domains that are not on an allow-list and for content matching risky patterns. Any violation fails the build.`,
		Version: common.Version,
		// Violations are reported as hits, cobra must not print them again.
		SilenceErrors: true,
	}

	rootCmd.AddCommand(scan.NewScanCmd())

	common.SetupPersistentPreRun(rootCmd)
	common.AddCommonFlags(rootCmd)

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	return rootCmd
}
