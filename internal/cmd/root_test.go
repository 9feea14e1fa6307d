package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	rootCmd := NewRootCmd()

	assert.Equal(t, "codechecker", rootCmd.Use)
	assert.NotNil(t, rootCmd.PersistentPreRun)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))

	scanCmd, _, err := rootCmd.Find([]string{"scan"})
	require.NoError(t, err)
	assert.Equal(t, "scan", scanCmd.Name())
}

func TestVersionOutput(t *testing.T) {
	rootCmd := NewRootCmd()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"--version"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "dev\n", out.String())
}

func TestScanRequiresPath(t *testing.T) {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"scan"})

	assert.Error(t, rootCmd.Execute())
}
