// Package engine applies a compiled rule set to a single artifact.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/CompassSecurity/codechecker/pkg/checker/domain"
	"github.com/CompassSecurity/codechecker/pkg/checker/rules"
	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/acarl005/stripansi"
	"github.com/rs/zerolog/log"
	"github.com/trufflesecurity/trufflehog/v3/pkg/detectors"
	"github.com/trufflesecurity/trufflehog/v3/pkg/engine/defaults"
	"github.com/wandb/parallel"
)

const (
	contextBytes     = 50
	maxContextLength = 1024
)

var defaultDetectors = sync.OnceValue(func() []detectors.Detector {
	return defaults.DefaultDetectors()
})

// Scanner produces violations for one artifact at a time. It holds no mutable state
// and can be shared between goroutines.
type Scanner struct {
	rules         *rules.RuleSet
	allowList     *domain.AllowList
	maxGoRoutines int
	detectors     func() []detectors.Detector
}

func New(rs *rules.RuleSet) *Scanner {
	return &Scanner{
		rules:         rs,
		allowList:     domain.NewAllowList(rs.AllowedDomainPatterns()),
		maxGoRoutines: runtime.NumCPU(),
		detectors:     defaultDetectors,
	}
}

// Scan checks artifact content. Domain violations come first in extraction order,
// followed by one violation per matching risky pattern in configuration order and
// finally leaked secrets when secret detection is enabled.
// Excluded and empty artifacts yield no violations.
func (s *Scanner) Scan(ctx context.Context, artifact types.Artifact) []types.Violation {
	if s.rules.Excluded(artifact.Name) {
		log.Trace().Str("artifact", artifact.Name).Msg("Skipping excluded artifact")
		return nil
	}
	if artifact.Content == "" {
		return nil
	}

	violations := s.domainViolations(artifact)
	violations = append(violations, s.riskyStringViolations(artifact)...)

	if s.rules.DetectSecrets() {
		violations = append(violations, s.secretViolations(ctx, artifact)...)
	}

	return violations
}

func (s *Scanner) domainViolations(artifact types.Artifact) []types.Violation {
	pattern := s.rules.DomainPattern()

	if s.rules.DomainMode() == types.DomainModeMatch {
		if domain.Contains(pattern, artifact.Content) && !s.allowList.Allowed(artifact.Content) {
			return []types.Violation{{
				ArtifactName: artifact.Name,
				Message:      fmt.Sprintf("%s has unallowed domain resources", artifact.Name),
				Kind:         types.ViolationKindDomain,
				Rule:         pattern.String(),
				Context:      cleanHitLine(truncate(artifact.Content)),
			}}
		}
		return nil
	}

	violations := []types.Violation{}
	for _, host := range s.allowList.Unallowed(domain.Extract(pattern, artifact.Content)) {
		violations = append(violations, types.Violation{
			ArtifactName: artifact.Name,
			Message:      fmt.Sprintf("%s has unallowed domain resource: %s", artifact.Name, host),
			Kind:         types.ViolationKindDomain,
			Rule:         host,
			Context:      contextOf(artifact.Content, strings.Index(artifact.Content, host), len(host)),
		})
	}
	return violations
}

func (s *Scanner) riskyStringViolations(artifact types.Artifact) []types.Violation {
	violations := []types.Violation{}
	for _, re := range s.rules.RiskyPatterns() {
		hit := re.FindStringIndex(artifact.Content)
		if hit == nil {
			continue
		}

		violations = append(violations, types.Violation{
			ArtifactName: artifact.Name,
			Message:      fmt.Sprintf("%s has risky string: %s", artifact.Name, re.String()),
			Kind:         types.ViolationKindRiskyString,
			Rule:         re.String(),
			Context:      contextOf(artifact.Content, hit[0], hit[1]-hit[0]),
		})
	}
	return violations
}

func (s *Scanner) secretViolations(ctx context.Context, artifact types.Artifact) []types.Violation {
	data := []byte(artifact.Content)
	verify := s.rules.VerifySecrets()
	group := parallel.Collect[[]string](parallel.Limited(ctx, s.maxGoRoutines))

	for _, detector := range s.detectors() {
		group.Go(func(ctx context.Context) ([]string, error) {
			results, err := detector.FromData(ctx, verify, data)
			if err != nil {
				log.Debug().Err(err).Str("artifact", artifact.Name).Msg("Secret detector failed")
				return nil, nil
			}

			found := []string{}
			for _, result := range results {
				if verify && !result.Verified {
					continue
				}
				found = append(found, result.DetectorType.String())
			}
			return found, nil
		})
	}

	found, err := group.Wait()
	if err != nil {
		log.Error().Stack().Err(err).Str("artifact", artifact.Name).Msg("Failed waiting for parallel secret detection")
	}

	names := slices.Concat(found...)
	slices.Sort(names)
	names = slices.Compact(names)

	violations := []types.Violation{}
	for _, name := range names {
		violations = append(violations, types.Violation{
			ArtifactName: artifact.Name,
			Message:      fmt.Sprintf("%s has leaked secret: %s", artifact.Name, name),
			Kind:         types.ViolationKindSecret,
			Rule:         name,
		})
	}
	return violations
}

func contextOf(text string, start int, length int) string {
	if start < 0 {
		return ""
	}
	return cleanHitLine(extractHitWithSurroundingText(text, start, start+length, contextBytes))
}

func extractHitWithSurroundingText(text string, start int, end int, additionalBytes int) string {
	start = max(start-additionalBytes, 0)
	end = min(end+additionalBytes, len(text))
	return truncate(text[start:end])
}

func truncate(text string) string {
	if len(text) > maxContextLength {
		return text[:maxContextLength]
	}
	return text
}

func cleanHitLine(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	return stripansi.Strip(text)
}
