package types

// DomainMode selects how hostnames are detected in an artifact.
type DomainMode string

const (
	// DomainModeExtract reports every distinct unallowed hostname found in the text.
	DomainModeExtract DomainMode = "extract"
	// DomainModeMatch treats the whole artifact as a single match test against the domain pattern.
	DomainModeMatch DomainMode = "match"
)

// Phase selects when accumulated violations fail the build.
type Phase string

const (
	// PhaseDeferred collects violations over all artifacts and fails once at finalize.
	PhaseDeferred Phase = "deferred"
	// PhaseImmediate fails right after each processed batch of artifacts.
	PhaseImmediate Phase = "immediate"
)

// Options is the raw configuration as supplied by the host.
type Options struct {
	RiskyStringCheck       []string   `json:"riskyStringCheck" yaml:"riskyStringCheck"`
	AllowedDomainResources []string   `json:"allowedDomainResources" yaml:"allowedDomainResources"`
	DomainRegex            string     `json:"domainRegex,omitempty" yaml:"domainRegex,omitempty"`
	ExcludeModules         []string   `json:"excludeModules,omitempty" yaml:"excludeModules,omitempty"`
	DomainMode             DomainMode `json:"domainMode,omitempty" yaml:"domainMode,omitempty"`
	Phase                  Phase      `json:"phase,omitempty" yaml:"phase,omitempty"`
	DetectSecrets          bool       `json:"detectSecrets,omitempty" yaml:"detectSecrets,omitempty"`
	VerifySecrets          bool       `json:"verifySecrets,omitempty" yaml:"verifySecrets,omitempty"`
}

// Artifact is one named text output of a build. The checker never mutates it.
type Artifact struct {
	Name    string
	Content string
}

// ViolationKind identifies which check produced a violation.
type ViolationKind string

const (
	ViolationKindDomain      ViolationKind = "domain"
	ViolationKindRiskyString ViolationKind = "risky-string"
	ViolationKindSecret      ViolationKind = "secret"
)

// Violation is one reported instance of non-compliant content.
// Message is the user-facing text that ends up in the build error,
// the remaining fields are only used for reporting.
type Violation struct {
	ArtifactName string
	Message      string
	Kind         ViolationKind
	Rule         string
	Context      string
}
