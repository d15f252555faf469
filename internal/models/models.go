package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PathNone is returned as the path when no candidate clears the threshold.
const PathNone = "none"

// Candidate is a single routing branch: a short label and the text describing it.
type Candidate struct {
	Label       string
	Description string
}

// CandidateSet is an ordered label -> description mapping.
// Order follows the JSON object and decides ties between equal scores.
type CandidateSet []Candidate

// UnmarshalJSON decodes a JSON object while keeping key order.
// A repeated key keeps its first position and takes the last value.
func (cs *CandidateSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("candidate set must be a JSON object")
	}

	out := CandidateSet{}
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}
		var desc string
		if err := dec.Decode(&desc); err != nil {
			return fmt.Errorf("description for %q: %w", label, err)
		}
		if i, dup := seen[label]; dup {
			out[i].Description = desc
			continue
		}
		seen[label] = len(out)
		out = append(out, Candidate{Label: label, Description: desc})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*cs = out
	return nil
}

// MarshalJSON encodes the set as a JSON object in candidate order.
func (cs CandidateSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Description)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Labels returns the candidate labels in order.
func (cs CandidateSet) Labels() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Label
	}
	return out
}

// Descriptions returns the candidate descriptions in order.
func (cs CandidateSet) Descriptions() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Description
	}
	return out
}

// Has reports whether label is part of the set.
func (cs CandidateSet) Has(label string) bool {
	for _, c := range cs {
		if c.Label == label {
			return true
		}
	}
	return false
}

// PathRequest is one message received on the stream socket.
// Pointer fields distinguish "missing" from "empty".
type PathRequest struct {
	Input            *string       `json:"input"`
	PathDescriptions *CandidateSet `json:"path_descriptions"`
	Threshold        *float64      `json:"threshold,omitempty"`
}

// CandidateScore is the similarity of the input to a single candidate.
type CandidateScore struct {
	Label string
	Score float64
}

// PathResult is the wire response for a path prediction.
type PathResult struct {
	Path            string  `json:"path"`
	Score           float64 `json:"score"`
	CalculationTime float64 `json:"calculation_time"`

	// Ranked holds every candidate score, best first. Not sent on the wire.
	Ranked []CandidateScore `json:"-"`
}

// Message is one turn of a conversation passed to the EOU predictor.
type Message struct {
	Role    string
	Content string
	// HasText is false when the content field was missing or not a string.
	HasText bool
}

// UnmarshalJSON accepts any content type; only string content counts as text.
// A missing role defaults to "user".
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    json.RawMessage `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = "user"
	if len(raw.Role) > 0 {
		var role string
		if err := json.Unmarshal(raw.Role, &role); err == nil {
			m.Role = role
		} else {
			m.Role = ""
		}
	}
	m.Content, m.HasText = "", false
	if len(raw.Content) > 0 && raw.Content[0] == '"' {
		if err := json.Unmarshal(raw.Content, &m.Content); err != nil {
			return err
		}
		m.HasText = true
	}
	return nil
}

// MarshalJSON writes the message in {role, content} form.
func (m Message) MarshalJSON() ([]byte, error) {
	out := map[string]any{"role": m.Role}
	if m.HasText {
		out["content"] = m.Content
	}
	return json.Marshal(out)
}

// EOURequest is one message received on the EOU socket.
type EOURequest struct {
	Messages []Message `json:"messages"`
}

// EOUResult is the wire response for an end-of-utterance prediction.
type EOUResult struct {
	Probability     float64 `json:"eou_probability"`
	CalculationTime float64 `json:"calculation_time"`
}

// ErrorMessage is sent inline on a socket when a message cannot be handled.
type ErrorMessage struct {
	Error string `json:"error"`
}
