package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/fieldscore/pkg/envelope"
)

func TestReadChallenges(t *testing.T) {
	got, err := readChallenges(strings.NewReader("ignored"), "", []string{"No uniforms", "School is far"})
	require.NoError(t, err)
	assert.Equal(t, "No uniforms\nSchool is far", got)

	path := filepath.Join(t.TempDir(), "challenges.txt")
	require.NoError(t, os.WriteFile(path, []byte("a | b"), 0o644))
	got, err = readChallenges(strings.NewReader("ignored"), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "a | b", got)

	got, err = readChallenges(strings.NewReader("from stdin"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	_, err = readChallenges(nil, filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}

func TestPrintEnvelope(t *testing.T) {
	var out bytes.Buffer
	err := printEnvelope(&out, envelope.Success("gemini", map[string]any{"relevance": "Relevant"}))
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"relevance": "Relevant"`)

	out.Reset()
	err = printEnvelope(&out, envelope.Failure(envelope.CodeInput, "Title is mandatory for story analysis."))
	assert.ErrorIs(t, err, errAnalysisFailed)
	assert.Contains(t, out.String(), "Title is mandatory")
}
