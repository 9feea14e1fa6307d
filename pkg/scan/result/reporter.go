package result

import (
	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/CompassSecurity/codechecker/pkg/logging"
)

type ReportOptions struct {
	// Source is where the scanned artifacts came from, file by default
	Source logging.ArtifactSource
	// Fingerprint of the rule set that produced the violations
	Fingerprint string
}

func ReportViolations(violations []types.Violation, opts ReportOptions) {
	for _, violation := range violations {
		ReportViolation(violation, opts)
	}
}

func ReportViolation(violation types.Violation, opts ReportOptions) {
	source := opts.Source
	if source == "" {
		source = logging.ArtifactSourceFile
	}

	event := logging.Hit().
		Str("kind", string(violation.Kind)).
		Str("artifact", violation.ArtifactName).
		Str("rule", violation.Rule).
		Str("source", string(source))

	if violation.Context != "" {
		event = event.Str("context", violation.Context)
	}
	if opts.Fingerprint != "" {
		event = event.Str("ruleset", opts.Fingerprint)
	}

	event.Msg(violation.Message)
}
