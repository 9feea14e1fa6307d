// Package gate ties the checker into a host build in two phases.
// The scan phase runs once per artifact as the host makes it available, possibly
// from many goroutines at once. The finalize phase runs once after the host has
// seen every artifact and turns the collected violations into a single error.
package gate

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/CompassSecurity/codechecker/pkg/checker/aggregator"
	"github.com/CompassSecurity/codechecker/pkg/checker/engine"
	"github.com/CompassSecurity/codechecker/pkg/checker/rules"
	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/rs/zerolog/log"
)

const PluginName = "CodeCheckerPlugin"

type State int32

const (
	StateIdle State = iota
	StateScanning
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Plugin is one checker instance. Violations live as long as the instance, so a new
// build needs a new Plugin.
type Plugin struct {
	rules   *rules.RuleSet
	scanner *engine.Scanner
	store   *aggregator.Store
	state   atomic.Int32
}

// New compiles opts and returns an idle plugin.
func New(opts types.Options) *Plugin {
	rs := rules.Compile(opts)

	log.Debug().
		Str("fingerprint", rs.Fingerprint()).
		Int("riskyPatterns", len(rs.RiskyPatterns())).
		Int("allowedDomains", len(rs.AllowedDomainPatterns())).
		Int("excludes", len(rs.ExcludePatterns())).
		Str("domainMode", string(rs.DomainMode())).
		Str("phase", string(rs.Phase())).
		Msg("Compiled checker rules")

	return &Plugin{
		rules:   rs,
		scanner: engine.New(rs),
		store:   aggregator.NewStore(),
	}
}

// NewFromJSON builds a plugin from a JSON options document. A document that cannot be
// decoded is a configuration error and no plugin is returned.
func NewFromJSON(raw string) (*Plugin, error) {
	opts, unknown, err := rules.ParseOptions(raw)
	if err != nil {
		return nil, err
	}
	for _, key := range unknown {
		log.Warn().Str("option", key).Msg("Ignoring unknown checker option")
	}
	return New(opts), nil
}

func (p *Plugin) Name() string {
	return PluginName
}

func (p *Plugin) Rules() *rules.RuleSet {
	return p.rules
}

func (p *Plugin) State() State {
	return State(p.state.Load())
}

// OnArtifactAvailable is the scan phase for a single artifact. Violations are only
// collected here and surface at finalize.
func (p *Plugin) OnArtifactAvailable(name string, content string) {
	p.ScanArtifact(context.Background(), types.Artifact{Name: name, Content: content})
}

// ScanArtifact is OnArtifactAvailable with a context for the optional secret detectors.
func (p *Plugin) ScanArtifact(ctx context.Context, artifact types.Artifact) {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateScanning)) && p.State() == StateFinalized {
		log.Debug().Str("artifact", artifact.Name).Msg("Ignoring artifact after finalize")
		return
	}

	violations := p.scanner.Scan(ctx, artifact)
	log.Trace().Str("artifact", artifact.Name).Int("violations", len(violations)).Msg("Scanned artifact")
	p.store.Append(violations...)
}

// ProcessBatch scans a batch of artifacts. With the immediate phase the violations of
// this batch are checked right away and the batch fails the build on its own;
// with the deferred phase checking is left to OnAllArtifactsProcessed.
func (p *Plugin) ProcessBatch(ctx context.Context, artifacts []types.Artifact) error {
	batch := p.BeginBatch()
	for _, artifact := range artifacts {
		p.ScanArtifact(ctx, artifact)
	}
	return batch.Check()
}

// Batch covers the violations collected between BeginBatch and Check.
type Batch struct {
	plugin *Plugin
	start  int
}

// BeginBatch starts a batch for hosts that feed artifacts one by one, e.g. through
// ScanArtifact from several goroutines.
func (p *Plugin) BeginBatch() *Batch {
	return &Batch{plugin: p, start: p.store.Len()}
}

// Check returns a *ComplianceError for the violations collected since the batch began,
// but only in the immediate phase. Earlier batches are never reported again.
func (b *Batch) Check() error {
	if b.plugin.rules.Phase() != types.PhaseImmediate {
		return nil
	}

	violations, err := b.plugin.store.Since(b.start)
	if err != nil {
		return &InternalError{Err: fmt.Errorf("failed to read collected violations: %w", err)}
	}
	if len(violations) == 0 {
		return nil
	}
	return &ComplianceError{Violations: violations}
}

// OnAllArtifactsProcessed is the finalize phase. It returns nil when no violation was
// collected, a *ComplianceError listing all of them otherwise and an *InternalError
// when the collected violations cannot be read.
func (p *Plugin) OnAllArtifactsProcessed() error {
	for {
		current := p.state.Load()
		if State(current) == StateFinalized {
			return ErrAlreadyFinalized
		}
		if p.state.CompareAndSwap(current, int32(StateFinalized)) {
			break
		}
	}

	return p.check()
}

func (p *Plugin) check() error {
	violations, err := p.store.Snapshot()
	if err != nil {
		return &InternalError{Err: fmt.Errorf("failed to read collected violations: %w", err)}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ComplianceError{Violations: violations}
}

// Violations returns the violations collected so far.
func (p *Plugin) Violations() ([]types.Violation, error) {
	return p.store.Snapshot()
}

// Close tears the instance down. Finalizing a closed plugin reports an internal error.
func (p *Plugin) Close() {
	p.store.Close()
}
