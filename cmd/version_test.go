package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd_PrintsInfo(t *testing.T) {
	cmd := versionCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Meeple version: "+version)
	assert.Contains(t, out, "Go version: "+goVersion)
	assert.Contains(t, out, "Platform: "+platform)
}

func TestVersionCmd_SkipsSetup(t *testing.T) {
	assert.Equal(t, "true", versionCmd().Annotations[skipSetup])
}
