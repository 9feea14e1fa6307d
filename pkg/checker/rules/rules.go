// Package rules compiles checker options into an immutable rule set.
// Each pattern is compiled on its own and a pattern that does not compile is left out
// of its list, so one bad entry never prevents the checker from being constructed.
package rules

import (
	"regexp"

	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/rxwycdh/rxhash"
)

const labelPattern = `[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?`

// DefaultDomainRegex matches the host of absolute and protocol relative URLs and captures
// it in the group named "host". Unlike a bare sequence of DNS labels it needs the "//"
// prefix, so file names such as lib.js and member access such as console.log are not
// taken for domains. A hostname outside a URL, e.g. a string constant "evil.tld", is
// only found with a custom domainRegex.
const DefaultDomainRegex = `//(?P<host>(?:` + labelPattern + `\.)+` + labelPattern + `)`

// DefaultDomainMatchRegex is the default for match mode: the whole artifact has to be a hostname.
const DefaultDomainMatchRegex = `^(?:` + labelPattern + `\.)+` + labelPattern + `$`

var (
	defaultDomainPattern      = regexp.MustCompile(DefaultDomainRegex)
	defaultDomainMatchPattern = regexp.MustCompile(DefaultDomainMatchRegex)
)

// Option names as used in the configuration document.
const (
	OptionRiskyStringCheck       = "riskyStringCheck"
	OptionAllowedDomainResources = "allowedDomainResources"
	OptionDomainRegex            = "domainRegex"
	OptionExcludeModules         = "excludeModules"
)

// RejectedPattern is a configured pattern that failed to compile.
type RejectedPattern struct {
	Option  string
	Pattern string
	Err     error
}

// RuleSet is the compiled form of types.Options. It is never modified after Compile
// and is safe for concurrent use.
type RuleSet struct {
	riskyPatterns         []*regexp.Regexp
	allowedDomainPatterns []*regexp.Regexp
	excludePatterns       []*regexp.Regexp
	domainPattern         *regexp.Regexp
	domainMode            types.DomainMode
	phase                 types.Phase
	detectSecrets         bool
	verifySecrets         bool
	rejected              []RejectedPattern
	fingerprint           string
}

// Compile builds the rule set for opts. It never fails, malformed patterns end up in Rejected.
func Compile(opts types.Options) *RuleSet {
	rs := &RuleSet{
		domainMode:    opts.DomainMode,
		phase:         opts.Phase,
		detectSecrets: opts.DetectSecrets,
		verifySecrets: opts.VerifySecrets,
	}

	if rs.domainMode != types.DomainModeMatch {
		rs.domainMode = types.DomainModeExtract
	}
	if rs.phase != types.PhaseImmediate {
		rs.phase = types.PhaseDeferred
	}

	rs.riskyPatterns = rs.compileAll(OptionRiskyStringCheck, opts.RiskyStringCheck)
	rs.allowedDomainPatterns = rs.compileAll(OptionAllowedDomainResources, opts.AllowedDomainResources)
	rs.excludePatterns = rs.compileAll(OptionExcludeModules, opts.ExcludeModules)

	rs.domainPattern = defaultDomainPattern
	if rs.domainMode == types.DomainModeMatch {
		rs.domainPattern = defaultDomainMatchPattern
	}
	if opts.DomainRegex != "" {
		if re := rs.compile(OptionDomainRegex, opts.DomainRegex); re != nil {
			rs.domainPattern = re
		}
	}

	rs.fingerprint = fingerprint(rs)
	return rs
}

func (rs *RuleSet) compileAll(option string, patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		if re := rs.compile(option, pattern); re != nil {
			compiled = append(compiled, re)
		}
	}
	return compiled
}

func (rs *RuleSet) compile(option string, pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		rs.rejected = append(rs.rejected, RejectedPattern{Option: option, Pattern: pattern, Err: err})
		return nil
	}
	return re
}

func fingerprint(rs *RuleSet) string {
	sources := struct {
		Risky         []string
		Allowed       []string
		Exclude       []string
		Domain        string
		DomainMode    string
		Phase         string
		DetectSecrets bool
		VerifySecrets bool
	}{
		Risky:         sourcesOf(rs.riskyPatterns),
		Allowed:       sourcesOf(rs.allowedDomainPatterns),
		Exclude:       sourcesOf(rs.excludePatterns),
		Domain:        rs.domainPattern.String(),
		DomainMode:    string(rs.domainMode),
		Phase:         string(rs.phase),
		DetectSecrets: rs.detectSecrets,
		VerifySecrets: rs.verifySecrets,
	}
	hash, _ := rxhash.HashStruct(sources)
	return hash
}

func sourcesOf(patterns []*regexp.Regexp) []string {
	out := make([]string, 0, len(patterns))
	for _, re := range patterns {
		out = append(out, re.String())
	}
	return out
}

// RiskyPatterns returns the compiled risky string patterns in configuration order.
func (rs *RuleSet) RiskyPatterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), rs.riskyPatterns...)
}

// AllowedDomainPatterns returns the compiled allow-list in configuration order.
func (rs *RuleSet) AllowedDomainPatterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), rs.allowedDomainPatterns...)
}

// ExcludePatterns returns the compiled artifact name exclusions.
func (rs *RuleSet) ExcludePatterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), rs.excludePatterns...)
}

// DomainPattern is the configured domainRegex or the default for the domain mode.
func (rs *RuleSet) DomainPattern() *regexp.Regexp {
	return rs.domainPattern
}

// DomainMode is extract unless match was configured.
func (rs *RuleSet) DomainMode() types.DomainMode {
	return rs.domainMode
}

// Phase is deferred unless immediate was configured.
func (rs *RuleSet) Phase() types.Phase {
	return rs.phase
}

func (rs *RuleSet) DetectSecrets() bool {
	return rs.detectSecrets
}

func (rs *RuleSet) VerifySecrets() bool {
	return rs.verifySecrets
}

// Rejected lists every configured pattern that was dropped because it did not compile.
func (rs *RuleSet) Rejected() []RejectedPattern {
	return append([]RejectedPattern(nil), rs.rejected...)
}

// Fingerprint is a stable hash over the compiled rule sources.
func (rs *RuleSet) Fingerprint() string {
	return rs.fingerprint
}

// Excluded reports whether the named artifact matches any exclude pattern.
func (rs *RuleSet) Excluded(name string) bool {
	for _, re := range rs.excludePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
