package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/CompassSecurity/codechecker/pkg/checker/gate"
	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/CompassSecurity/codechecker/pkg/config"
	"github.com/CompassSecurity/codechecker/pkg/format"
	"github.com/CompassSecurity/codechecker/pkg/logging"
	"github.com/CompassSecurity/codechecker/pkg/scan/artifact"
	"github.com/CompassSecurity/codechecker/pkg/scan/result"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type ScanOptions struct {
	config.ScanOptions
	Source            config.OptionsSource
	ArtifactSizeLimit string
	PrintOptions      bool
}

func DefaultOptions() ScanOptions {
	return ScanOptions{
		ScanOptions:       config.DefaultScanOptions(),
		ArtifactSizeLimit: "500MB",
	}
}

func NewScanCmd() *cobra.Command {
	options := DefaultOptions()

	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Check build output for unallowed domains and risky strings",
		Long: `Scan every file of the given build output directories for compliance violations.

Referenced domains that are not on the allow-list and content matching a risky pattern
are reported as hits. When at least one violation is found the command exits with 1.

### Options
Checker options are a JSON object:

  riskyStringCheck        patterns of forbidden content
  allowedDomainResources  patterns of allowed domains
  excludeModules          patterns of artifact names that are not scanned
  domainRegex             pattern extracting domains, defaults to URL hosts
  domainMode              extract (default) or match
  phase                   deferred (default) or immediate
  detectSecrets           additionally report leaked credentials
  verifySecrets           verify detected credentials against their service

They are read from --options, --config (JSON, JSON5 or YAML), --options-url or the
CODECHECKER_OPTIONS environment variable, in that order.
		`,
		Example: `
# Scan a build directory with inline options
codechecker scan dist --options '{"riskyStringCheck":["eval\\("],"allowedDomainResources":["example\\.com$"]}'

# Read the options from the codeChecker key of a package.json
codechecker scan dist --config package.json --config-key codeChecker

# Fail on the first directory with violations
codechecker scan dist/app dist/admin --options '{"phase":"immediate","riskyStringCheck":["debugger"]}'
		`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Scan(cmd.Context(), cmd.OutOrStdout(), args, options)
		},
	}

	scanCmd.Flags().StringVarP(&options.Source.Inline, "options", "o", "", "Checker options as JSON")
	scanCmd.Flags().StringVarP(&options.Source.File, "config", "c", "", "File containing checker options (.json, .yaml, .json5 with comments, unquoted keys and trailing commas; strings in double quotes)")
	scanCmd.Flags().StringVarP(&options.Source.Key, "config-key", "k", "", "Key of the options object inside the config document, e.g. codeChecker")
	scanCmd.Flags().StringVarP(&options.Source.URL, "options-url", "", "", "URL serving checker options")
	scanCmd.MarkFlagsMutuallyExclusive("options", "config", "options-url")

	scanCmd.Flags().IntVarP(&options.MaxScanGoRoutines, "threads", "", options.MaxScanGoRoutines, "Nr of threads used to scan")
	scanCmd.Flags().StringVarP(&options.ArtifactSizeLimit, "max-artifact-size", "", options.ArtifactSizeLimit, "Max file size of an artifact or archive to be scanned. Larger files are skipped. Format: https://pkg.go.dev/github.com/docker/go-units#FromHumanSize")
	scanCmd.Flags().BoolVarP(&options.IncludeBinary, "include-binary", "", false, "Also scan files detected as binary (images, fonts, executables)")
	scanCmd.Flags().BoolVarP(&options.ExtractArchives, "extract-archives", "", options.ExtractArchives, "Scan the entries of archives found in the build output")
	scanCmd.Flags().BoolVarP(&options.PrintOptions, "print-options", "", false, "Print the effective checker options as YAML before scanning")

	return scanCmd
}

// Scan runs the checker over paths and finalizes it. The returned error is the
// finalize result: nil, a *gate.ComplianceError or a *gate.InternalError.
func Scan(ctx context.Context, out io.Writer, paths []string, options ScanOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	size, err := config.ParseMaxArtifactSize(options.ArtifactSizeLimit)
	if err != nil {
		log.Error().Err(err).Str("size", options.ArtifactSizeLimit).Msg("Failed parsing max-artifact-size flag")
		return err
	}
	options.MaxArtifactSize = size
	if err := options.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid scan options")
		return err
	}
	if options.Source.URL != "" {
		if err := config.ValidateURL(options.Source.URL, "Options URL"); err != nil {
			log.Error().Err(err).Msg("Invalid options URL")
			return err
		}
	}

	checkerOptions, unknown, err := config.LoadOptions(ctx, options.Source)
	if err != nil {
		log.Error().Err(err).Msg("Failed loading checker options")
		return err
	}
	for _, key := range unknown {
		log.Warn().Str("key", key).Msg("Ignoring unknown checker option")
	}

	if options.PrintOptions {
		if err := printOptions(out, checkerOptions); err != nil {
			return err
		}
	}

	plugin := gate.New(checkerOptions)
	defer plugin.Close()

	for _, rejected := range plugin.Rules().Rejected() {
		log.Warn().Str("option", rejected.Option).Str("pattern", rejected.Pattern).Err(rejected.Err).Msg("Ignoring invalid pattern")
	}

	log.Info().Strs("paths", paths).Str("ruleset", plugin.Rules().Fingerprint()).Msg("Scanning build output")

	processOptions := artifact.ProcessOptions{
		MaxGoRoutines:   options.MaxScanGoRoutines,
		MaxArtifactSize: options.MaxArtifactSize,
		IncludeBinary:   options.IncludeBinary,
		ExtractArchives: options.ExtractArchives,
	}

	batches := [][]string{paths}
	if plugin.Rules().Phase() == types.PhaseImmediate {
		batches = make([][]string, 0, len(paths))
		for _, path := range paths {
			batches = append(batches, []string{path})
		}
	}

	scanned := 0
	for _, batchPaths := range batches {
		batch := plugin.BeginBatch()
		res, err := artifact.ProcessPaths(ctx, plugin, batchPaths, processOptions)
		if err != nil {
			log.Error().Err(err).Msg("Failed processing build output")
			return &gate.InternalError{Err: err}
		}
		scanned += res.Scanned()
		for _, fileErr := range res.Errors() {
			log.Debug().Err(fileErr).Msg("Artifact could not be read")
		}

		if err := batch.Check(); err != nil {
			log.Info().Strs("paths", batchPaths).Msg("Stopping after batch with violations")
			return finish(plugin, err)
		}
	}

	log.Info().Int("artifacts", scanned).Msg("Scanned build output")
	return finish(plugin, plugin.OnAllArtifactsProcessed())
}

func finish(plugin *gate.Plugin, err error) error {
	var complianceErr *gate.ComplianceError
	var internalErr *gate.InternalError

	switch {
	case err == nil:
		log.Info().Msg("No compliance violations found")
		return nil
	case errors.As(err, &complianceErr):
		for _, violation := range complianceErr.Violations {
			result.ReportViolation(violation, result.ReportOptions{
				Source:      sourceOf(violation.ArtifactName),
				Fingerprint: plugin.Rules().Fingerprint(),
			})
		}
		log.Error().Int("violations", len(complianceErr.Violations)).Msg("Compliance check failed")
	case errors.As(err, &internalErr):
		log.Error().Err(internalErr.Err).Msg("Compliance check could not complete")
	default:
		log.Error().Err(err).Msg("Compliance check failed")
	}
	return err
}

func sourceOf(name string) logging.ArtifactSource {
	if strings.Contains(name, artifact.ArchiveSeparator) {
		return logging.ArtifactSourceArchive
	}
	return logging.ArtifactSourceFile
}

func printOptions(out io.Writer, options types.Options) error {
	rendered, err := format.ToYAML(options)
	if err != nil {
		log.Error().Err(err).Msg("Failed rendering checker options")
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
