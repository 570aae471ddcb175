package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resourcesearch/pkg/version"
)

func runVersion(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCmd_Formats(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{"line", nil, func(t *testing.T, out string) {
			assert.True(t, strings.HasPrefix(out, "resourcesearch "+version.Version))
			assert.Contains(t, out, version.Get().Platform)
		}},
		{"short", []string{"--short"}, func(t *testing.T, out string) {
			assert.Equal(t, version.Version+"\n", out)
		}},
		{"json", []string{"--json"}, func(t *testing.T, out string) {
			var info version.BuildInfo
			require.NoError(t, json.Unmarshal([]byte(out), &info))
			assert.Equal(t, version.Version, info.Version)
			assert.NotEmpty(t, info.GoVersion)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, runVersion(t, tt.args...))
		})
	}
}

func TestVersionCmd_RejectsArgs(t *testing.T) {
	cmd := newVersionCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	assert.Error(t, cmd.Execute())
}
