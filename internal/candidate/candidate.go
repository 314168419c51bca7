package candidate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
)

// UnknownGroup is the value used for candidates whose protected attribute is
// missing or empty. Such candidates are excluded from disparity math whenever
// at least two known groups exist.
const UnknownGroup = "unknown"

// ScoredCandidate is one applicant record as emitted by the upstream scoring
// stage. Records are treated as immutable: shortlisting strategies attach
// derived values (such as a reweighted score) to their own decision output and
// never write back into the record.
type ScoredCandidate struct {
	ID           string             `json:"candidate_id"`
	OverallScore float64            `json:"overall_score"`
	Attributes   map[string]string  `json:"attributes,omitempty"`
	Scores       map[string]float64 `json:"scores,omitempty"`
}

// Attribute returns the candidate's value for the given protected-attribute
// key, normalizing a missing or empty value to UnknownGroup.
func (c *ScoredCandidate) Attribute(key string) string {
	if c.Attributes == nil {
		return UnknownGroup
	}
	v := c.Attributes[key]
	if v == "" {
		return UnknownGroup
	}
	return v
}

type Pool struct {
	Items []*ScoredCandidate `json:"items"`
}

func (p *Pool) Len() int {
	return len(p.Items)
}

func (p *Pool) FindByID(id string) *ScoredCandidate {
	for _, c := range p.Items {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// IDs returns candidate ids in input order.
func (p *Pool) IDs() []string {
	ids := make([]string, 0, len(p.Items))
	for _, c := range p.Items {
		ids = append(ids, c.ID)
	}
	return ids
}

// HasAttribute reports whether at least one candidate carries a non-empty
// value for the given attribute key.
func (p *Pool) HasAttribute(key string) bool {
	for _, c := range p.Items {
		if c.Attribute(key) != UnknownGroup {
			return true
		}
	}
	return false
}

// Groups partitions candidate indexes by the given protected attribute. The
// set of groups is derived from the data, never declared.
func (p *Pool) Groups(attribute string) map[string][]int {
	groups := make(map[string][]int)
	for i, c := range p.Items {
		g := c.Attribute(attribute)
		groups[g] = append(groups[g], i)
	}
	return groups
}

// KnownGroups returns the partition with the unknown bucket removed whenever
// at least two known groups exist. With fewer than two known groups the full
// partition is returned unchanged, so a pool with only unknown values is
// still treated as a single group.
func (p *Pool) KnownGroups(attribute string) map[string][]int {
	groups := p.Groups(attribute)
	known := 0
	for g := range groups {
		if g != UnknownGroup {
			known++
		}
	}
	if known >= 2 {
		delete(groups, UnknownGroup)
	}
	return groups
}

// DumpToTmpFile writes the pool to a temporary JSON file for review.
func (p *Pool) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "candidates_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// FromRecords builds a pool from generic records, as handed over in memory by
// an upstream scoring stage. Field names follow the JSON tags.
func FromRecords(records []map[string]any) (*Pool, error) {
	var items []*ScoredCandidate

	cfg := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &items,
		TagName:  "json",
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(records); err != nil {
		return nil, fmt.Errorf("decoding candidate records: %w", err)
	}

	return &Pool{Items: items}, nil
}

// LoadPool reads a candidate pool from a JSON file. Both the wrapped
// {"items": [...]} form and a bare array of records are accepted.
func LoadPool(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidate pool: %w", err)
	}

	var pool Pool
	if err := json.Unmarshal(data, &pool); err == nil && pool.Items != nil {
		return &pool, nil
	}

	var items []*ScoredCandidate
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing candidate pool %q: %w", path, err)
	}
	return &Pool{Items: items}, nil
}
