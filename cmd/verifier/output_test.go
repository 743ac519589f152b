package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realfinder/verifier/src/verification/types"
)

func TestWriteDecision(t *testing.T) {
	color.NoColor = true

	d := &types.Decision{
		ID:            "d-1",
		SubjectType:   types.SubjectListing,
		SubjectID:     "L-1",
		Decision:      types.Flag,
		CombinedScore: 0.6,
		PerCheck: map[string]types.CheckResult{
			"text":  {Status: types.StatusPass, ConfidenceScore: 0.6, ExecutionTime: 1.25},
			"image": {Status: types.StatusError, Findings: []types.Finding{{Code: "provider.timeout"}}},
		},
		Reasons:   []string{"image could not be evaluated"},
		DecidedAt: time.Now(),
	}

	var buf bytes.Buffer
	require.NoError(t, writeDecision(&buf, d))
	out := buf.String()

	assert.Contains(t, out, "provider.timeout")
	assert.Contains(t, out, "1.25s")
	assert.Contains(t, out, "L-1 FLAG (score 0.6000, id d-1)")
	assert.Contains(t, out, "- image could not be evaluated")
	assert.Less(t, strings.Index(out, "image"), strings.Index(out, "text"), "checks are sorted")
}

func TestReadInput(t *testing.T) {
	b, err := readInput(strings.NewReader(`{"id":"x"}`), "-")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"x"}`, string(b))

	_, err = readInput(nil, "/does/not/exist.json")
	assert.Error(t, err)
}
