package scan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CompassSecurity/codechecker/pkg/checker/gate"
	"github.com/CompassSecurity/codechecker/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildOutput(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func optionsWith(inline string) ScanOptions {
	options := DefaultOptions()
	options.Source.Inline = inline
	return options
}

func TestNewScanCmd(t *testing.T) {
	cmd := NewScanCmd()

	assert.Equal(t, "scan [paths...]", cmd.Use)
	for _, name := range []string{"options", "config", "config-key", "options-url", "threads", "max-artifact-size", "include-binary", "extract-archives", "print-options"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "500MB", cmd.Flags().Lookup("max-artifact-size").DefValue)
	assert.Equal(t, "4", cmd.Flags().Lookup("threads").DefValue)
}

func TestScan(t *testing.T) {
	const config = `{"riskyStringCheck":["eval\\("],"allowedDomainResources":["^cdn\\.example\\.com$"]}`

	tests := []struct {
		name               string
		files              map[string]string
		inline             string
		expectedViolations []string
	}{
		{
			name:   "clean build output",
			files:  map[string]string{"index.html": `<script src="https://cdn.example.com/lib.js"></script>`},
			inline: config,
		},
		{
			name: "violations across files",
			files: map[string]string{
				"bundle.js": "fetch('https://evil.tld/x'); eval(x)",
				"safe.js":   "fetch('https://cdn.example.com/lib.js')",
			},
			inline: config,
			expectedViolations: []string{
				"bundle.js has unallowed domain resource: evil.tld",
				`bundle.js has risky string: eval\(`,
			},
		},
		{
			name:   "excluded artifacts",
			files:  map[string]string{"vendor/lib.js": "eval(x)"},
			inline: `{"riskyStringCheck":["eval\\("],"excludeModules":["^vendor/"]}`,
		},
		{
			name:   "default options allow nothing",
			files:  map[string]string{"app.js": "fetch('https://api.example.com')"},
			inline: "",
			expectedViolations: []string{
				"app.js has unallowed domain resource: api.example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CODECHECKER_OPTIONS", "")
			dir := buildOutput(t, tt.files)

			err := Scan(context.Background(), &bytes.Buffer{}, []string{dir}, optionsWith(tt.inline))
			if len(tt.expectedViolations) == 0 {
				assert.NoError(t, err)
				return
			}

			var complianceErr *gate.ComplianceError
			require.ErrorAs(t, err, &complianceErr)
			messages := []string{}
			for _, v := range complianceErr.Violations {
				messages = append(messages, v.Message)
			}
			assert.Equal(t, tt.expectedViolations, messages)
		})
	}
}

func TestScanImmediatePhaseStopsAtFirstFailingPath(t *testing.T) {
	first := buildOutput(t, map[string]string{"a.js": "debugger;"})
	second := buildOutput(t, map[string]string{"b.js": "debugger;"})

	err := Scan(context.Background(), &bytes.Buffer{}, []string{first, second}, optionsWith(`{"phase":"immediate","riskyStringCheck":["debugger"]}`))

	var complianceErr *gate.ComplianceError
	require.ErrorAs(t, err, &complianceErr)
	require.Len(t, complianceErr.Violations, 1)
	assert.Equal(t, "a.js has risky string: debugger", complianceErr.Violations[0].Message)
}

func TestScanConfigFile(t *testing.T) {
	dir := buildOutput(t, map[string]string{"app.js": "eval(x)"})
	configDir := buildOutput(t, map[string]string{
		"package.json": `{"name":"app","codeChecker":{"riskyStringCheck":["eval\\("]}}`,
	})

	options := DefaultOptions()
	options.Source.File = filepath.Join(configDir, "package.json")
	options.Source.Key = "codeChecker"

	err := Scan(context.Background(), &bytes.Buffer{}, []string{dir}, options)
	var complianceErr *gate.ComplianceError
	require.ErrorAs(t, err, &complianceErr)
	assert.Equal(t, `app.js has risky string: eval\(`, err.Error())
}

func TestScanPrintOptions(t *testing.T) {
	dir := buildOutput(t, map[string]string{"app.js": "ok"})
	out := &bytes.Buffer{}

	options := optionsWith(`{"riskyStringCheck":["debugger"],"domainMode":"match"}`)
	options.PrintOptions = true

	require.NoError(t, Scan(context.Background(), out, []string{dir}, options))
	assert.Contains(t, out.String(), "riskyStringCheck:")
	assert.Contains(t, out.String(), "debugger")
	assert.Contains(t, out.String(), "domainMode: match")
}

func TestScanInvalidInput(t *testing.T) {
	dir := buildOutput(t, map[string]string{"app.js": "ok"})

	tests := []struct {
		name    string
		options func() ScanOptions
		paths   []string
	}{
		{
			name:    "invalid options document",
			options: func() ScanOptions { return optionsWith(`{"riskyStringCheck": 1}`) },
			paths:   []string{dir},
		},
		{
			name: "invalid size",
			options: func() ScanOptions {
				options := DefaultOptions()
				options.ArtifactSizeLimit = "huge"
				return options
			},
			paths: []string{dir},
		},
		{
			name: "invalid thread count",
			options: func() ScanOptions {
				options := DefaultOptions()
				options.MaxScanGoRoutines = 0
				return options
			},
			paths: []string{dir},
		},
		{
			name: "invalid options url",
			options: func() ScanOptions {
				options := DefaultOptions()
				options.Source.URL = "not a url"
				return options
			},
			paths: []string{dir},
		},
		{
			name:    "missing path",
			options: DefaultOptions,
			paths:   []string{filepath.Join(dir, "missing")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CODECHECKER_OPTIONS", "")
			err := Scan(context.Background(), &bytes.Buffer{}, tt.paths, tt.options())
			require.Error(t, err)
			var complianceErr *gate.ComplianceError
			assert.NotErrorAs(t, err, &complianceErr)
		})
	}
}

func TestSourceOf(t *testing.T) {
	assert.Equal(t, logging.ArtifactSourceFile, sourceOf("js/app.js"))
	assert.Equal(t, logging.ArtifactSourceArchive, sourceOf("bundle.zip!/app.js"))
}
