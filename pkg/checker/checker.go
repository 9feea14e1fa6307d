// Package checker exposes the compliance checker to hosts: construct a Plugin once,
// call OnArtifactAvailable for every build output and OnAllArtifactsProcessed at the end.
package checker

import (
	"github.com/CompassSecurity/codechecker/pkg/checker/gate"
	"github.com/CompassSecurity/codechecker/pkg/checker/rules"
	"github.com/CompassSecurity/codechecker/pkg/checker/types"
)

type Options = types.Options
type Artifact = types.Artifact
type Violation = types.Violation
type Plugin = gate.Plugin
type ComplianceError = gate.ComplianceError
type InternalError = gate.InternalError
type Batch = gate.Batch

var New = gate.New
var NewFromJSON = gate.NewFromJSON
var ParseOptions = rules.ParseOptions
var DefaultOptions = rules.DefaultOptions

var ErrInvalidOptions = rules.ErrInvalidOptions
var ErrAlreadyFinalized = gate.ErrAlreadyFinalized
