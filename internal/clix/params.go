package clix

import (
	"fmt"
	"os"

	"eou/internal/models"
	"eou/internal/util"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultCandidates is the set used when no --paths file is given.
func DefaultCandidates() models.CandidateSet {
	return models.CandidateSet{
		{Label: "A", Description: "When the lead asks for the finance support"},
		{Label: "B", Description: "When the lead asks for the technical support"},
		{Label: "C", Description: "When the lead asks for the customer support"},
	}
}

// ParseCandidates loads the --paths file, falling back to DefaultCandidates.
func ParseCandidates(flags *pflag.FlagSet) (models.CandidateSet, error) {
	path, _ := flags.GetString("paths")
	if path == "" {
		return DefaultCandidates(), nil
	}
	return LoadCandidateSet(path)
}

// ParseThreshold returns the --threshold flag, or nil when it was not set.
func ParseThreshold(flags *pflag.FlagSet) (*float64, error) {
	if !flags.Changed("threshold") {
		return nil, nil
	}
	t, err := flags.GetFloat64("threshold")
	if err != nil {
		return nil, err
	}
	if t < 0 || t > 1 {
		return nil, fmt.Errorf("threshold must be within [0, 1], got %v", t)
	}
	return &t, nil
}

// LoadCandidateSet reads a label to description mapping from a YAML or JSON
// file, keeping the file's order.
func LoadCandidateSet(path string) (models.CandidateSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate file: %w", err)
	}
	content, err := util.CleanFileContent(raw, path)
	if err != nil {
		return nil, err
	}
	return ParseCandidateSet(content)
}

// ParseCandidateSet decodes a YAML (or JSON) mapping of label to description.
func ParseCandidateSet(content string) (models.CandidateSet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parse candidate file: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("candidate file is empty")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("candidate file must be a mapping of label to description")
	}

	var set models.CandidateSet
	index := make(map[string]int)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: description for %q must be a string", val.Line, key.Value)
		}
		if pos, ok := index[key.Value]; ok {
			set[pos].Description = val.Value
			continue
		}
		index[key.Value] = len(set)
		set = append(set, models.Candidate{Label: key.Value, Description: val.Value})
	}
	if len(set) == 0 {
		return nil, models.ErrEmptyCandidates
	}
	return set, nil
}
