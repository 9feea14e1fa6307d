package rules

import (
	"testing"

	"github.com/CompassSecurity/codechecker/pkg/checker/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name            string
		opts            types.Options
		expectedRisky   []string
		expectedAllowed []string
		expectedExclude []string
		expectedDomain  string
		rejected        int
	}{
		{
			name:            "empty options use default domain pattern",
			opts:            types.Options{},
			expectedRisky:   []string{},
			expectedAllowed: []string{},
			expectedExclude: []string{},
			expectedDomain:  DefaultDomainRegex,
		},
		{
			name: "all patterns valid",
			opts: types.Options{
				RiskyStringCheck:       []string{`eval\(`, `new Function`},
				AllowedDomainResources: []string{`^cdn\.example\.com$`},
				ExcludeModules:         []string{`\.map$`},
				DomainRegex:            `[a-z]+\.test`,
			},
			expectedRisky:   []string{`eval\(`, `new Function`},
			expectedAllowed: []string{`^cdn\.example\.com$`},
			expectedExclude: []string{`\.map$`},
			expectedDomain:  `[a-z]+\.test`,
		},
		{
			name: "malformed patterns are dropped",
			opts: types.Options{
				RiskyStringCheck:       []string{`(`, `eval\(`, `[z-a]`},
				AllowedDomainResources: []string{`*.example.com`},
				ExcludeModules:         []string{`\.map$`, `(?<=x)`},
			},
			expectedRisky:   []string{`eval\(`},
			expectedAllowed: []string{},
			expectedExclude: []string{`\.map$`},
			expectedDomain:  DefaultDomainRegex,
			rejected:        4,
		},
		{
			name: "malformed domain regex falls back to default",
			opts: types.Options{
				DomainRegex: `([a-z]+`,
			},
			expectedRisky:   []string{},
			expectedAllowed: []string{},
			expectedExclude: []string{},
			expectedDomain:  DefaultDomainRegex,
			rejected:        1,
		},
		{
			name: "match mode default",
			opts: types.Options{
				DomainMode: types.DomainModeMatch,
			},
			expectedRisky:   []string{},
			expectedAllowed: []string{},
			expectedExclude: []string{},
			expectedDomain:  DefaultDomainMatchRegex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := Compile(tt.opts)

			assert.Equal(t, tt.expectedRisky, sourcesOf(rs.RiskyPatterns()))
			assert.Equal(t, tt.expectedAllowed, sourcesOf(rs.AllowedDomainPatterns()))
			assert.Equal(t, tt.expectedExclude, sourcesOf(rs.ExcludePatterns()))
			assert.Equal(t, tt.expectedDomain, rs.DomainPattern().String())
			assert.Len(t, rs.Rejected(), tt.rejected)
		})
	}
}

func TestCompileRejectedDetails(t *testing.T) {
	rs := Compile(types.Options{RiskyStringCheck: []string{`(`}})

	rejected := rs.Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, OptionRiskyStringCheck, rejected[0].Option)
	assert.Equal(t, `(`, rejected[0].Pattern)
	assert.Error(t, rejected[0].Err)
}

func TestCompileDefaults(t *testing.T) {
	rs := Compile(types.Options{DomainMode: "bogus", Phase: "bogus"})

	assert.Equal(t, types.DomainModeExtract, rs.DomainMode())
	assert.Equal(t, types.PhaseDeferred, rs.Phase())
	assert.False(t, rs.DetectSecrets())
	assert.False(t, rs.VerifySecrets())
}

func TestRuleSetIsNotModifiedThroughAccessors(t *testing.T) {
	rs := Compile(types.Options{RiskyStringCheck: []string{`a`, `b`}})

	patterns := rs.RiskyPatterns()
	patterns[0] = nil

	assert.NotNil(t, rs.RiskyPatterns()[0])
	assert.Equal(t, "a", rs.RiskyPatterns()[0].String())
}

func TestExcluded(t *testing.T) {
	rs := Compile(types.Options{ExcludeModules: []string{`\.map$`, `^vendor/`}})

	assert.True(t, rs.Excluded("bundle.js.map"))
	assert.True(t, rs.Excluded("vendor/react.js"))
	assert.False(t, rs.Excluded("bundle.js"))

	empty := Compile(types.Options{})
	assert.False(t, empty.Excluded("bundle.js.map"))
}

func TestFingerprint(t *testing.T) {
	a := Compile(types.Options{RiskyStringCheck: []string{`eval\(`}})
	b := Compile(types.Options{RiskyStringCheck: []string{`eval\(`}})
	c := Compile(types.Options{RiskyStringCheck: []string{`document\.write`}})

	assert.NotEmpty(t, a.Fingerprint())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestDefaultDomainPattern(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "https url",
			text:     "fetch('https://evil.tld/x')",
			expected: []string{"evil.tld"},
		},
		{
			name:     "protocol relative url",
			text:     `<script src="//cdn.example.com/lib.js">`,
			expected: []string{"cdn.example.com"},
		},
		{
			name:     "file names and property access are not hosts",
			text:     "import x from './lib.js'; console.log(x)",
			expected: nil,
		},
		{
			name:     "hostname outside a url is not matched",
			text:     `const host = "evil.tld"`,
			expected: nil,
		},
		{
			name:     "label may not start with a hyphen",
			text:     "https://-bad.example.com",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hosts []string
			for _, match := range defaultDomainPattern.FindAllStringSubmatch(tt.text, -1) {
				hosts = append(hosts, match[1])
			}
			assert.Equal(t, tt.expected, hosts)
		})
	}
}

func TestDefaultDomainPatternHostGroup(t *testing.T) {
	assert.Equal(t, 1, defaultDomainPattern.SubexpIndex("host"))
}

func TestDefaultDomainMatchPattern(t *testing.T) {
	assert.True(t, defaultDomainMatchPattern.MatchString("evil.tld"))
	assert.True(t, defaultDomainMatchPattern.MatchString("a-b.c1.example"))
	assert.False(t, defaultDomainMatchPattern.MatchString("localhost"))
	assert.False(t, defaultDomainMatchPattern.MatchString("-evil.tld"))
	assert.False(t, defaultDomainMatchPattern.MatchString("evil-.tld"))
	assert.False(t, defaultDomainMatchPattern.MatchString("fetch('https://evil.tld')"))
}
