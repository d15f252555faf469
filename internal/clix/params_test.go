package clix

import (
	"os"
	"path/filepath"
	"testing"

	"eou/internal/models"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidateSetKeepsOrder(t *testing.T) {
	set, err := ParseCandidateSet("zeta: last letter\nalpha: first letter\nmid: \"middle: quoted\"\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, set.Labels())
	assert.Equal(t, "middle: quoted", set[2].Description)
}

func TestParseCandidateSetJSON(t *testing.T) {
	set, err := ParseCandidateSet(`{"B": "second", "A": "first"}`)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateSet{
		{Label: "B", Description: "second"},
		{Label: "A", Description: "first"},
	}, set)
}

func TestParseCandidateSetErrors(t *testing.T) {
	_, err := ParseCandidateSet("")
	assert.Error(t, err)

	_, err = ParseCandidateSet("- a\n- b\n")
	assert.ErrorContains(t, err, "mapping")

	_, err = ParseCandidateSet("a:\n  nested: value\n")
	assert.ErrorContains(t, err, "must be a string")

	_, err = ParseCandidateSet("{}")
	assert.ErrorIs(t, err, models.ErrEmptyCandidates)
}

func TestParseCandidatesFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("paths", "", "")

	set, err := ParseCandidates(flags)
	require.NoError(t, err)
	assert.Equal(t, DefaultCandidates(), set)

	file := filepath.Join(t.TempDir(), "paths.yaml")
	require.NoError(t, os.WriteFile(file, []byte("\xef\xbb\xbfbilling: it\u2019s invoices\n"), 0o644))
	require.NoError(t, flags.Set("paths", file))

	set, err = ParseCandidates(flags)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "billing", set[0].Label)
	assert.Equal(t, "it's invoices", set[0].Description)
}

func TestParseThreshold(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("threshold", 0.5, "")

	th, err := ParseThreshold(flags)
	require.NoError(t, err)
	assert.Nil(t, th)

	require.NoError(t, flags.Set("threshold", "0.8"))
	th, err = ParseThreshold(flags)
	require.NoError(t, err)
	require.NotNil(t, th)
	assert.Equal(t, 0.8, *th)

	require.NoError(t, flags.Set("threshold", "1.5"))
	_, err = ParseThreshold(flags)
	assert.Error(t, err)
}
