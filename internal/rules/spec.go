// Package rules implements the user-authored screening rules: a nested
// boolean condition tree or an ordered list of typed stages, evaluated
// against candidate records.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// GroupOp combines the children of a condition group.
type GroupOp string

const (
	OpAnd GroupOp = "AND"
	OpOr  GroupOp = "OR"
)

// Node is either a *Group or a *Condition.
type Node interface {
	isNode()
}

// Group is a boolean combination of conditions and nested groups.
type Group struct {
	Op       GroupOp
	Children []Node
}

func (*Group) isNode() {}

// Condition is a leaf check against one record field.
type Condition struct {
	Field    string `mapstructure:"field"`
	Operator string `mapstructure:"operator"`
	Value    any    `mapstructure:"value"`
}

func (*Condition) isNode() {}

// Stage is one unit of a staged rule spec: a hard gate (MustMatch) or a
// scored filter (PassScore).
type Stage struct {
	Type      string   `mapstructure:"type"`
	Keywords  []string `mapstructure:"keywords"`
	MustMatch bool     `mapstructure:"must_match"`
	PassScore *float64 `mapstructure:"pass_score"`
	Enabled   bool     `mapstructure:"enabled"`
	Order     int      `mapstructure:"order"`
	// UseAI delegates this stage's score to the configured remote scorer.
	UseAI bool `mapstructure:"use_ai"`
}

// Spec is a complete rule specification. Exactly one of Tree or Stages is
// normally set; an empty spec admits every candidate.
type Spec struct {
	Tree   *Group
	Stages []Stage
}

// Empty reports whether the spec contains no rules at all.
func (s Spec) Empty() bool {
	return (s.Tree == nil || len(s.Tree.Children) == 0) && len(s.Stages) == 0
}

// SortedStages returns enabled stages in ascending evaluation order.
func (s Spec) SortedStages() []Stage {
	out := make([]Stage, 0, len(s.Stages))
	for _, stage := range s.Stages {
		if stage.Enabled {
			out = append(out, stage)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// DecodeSpec builds a Spec from the loosely-typed shape viper hands back.
// Accepted keys: "tree" (nested group) and "stages" (list of stage maps).
func DecodeSpec(raw map[string]any) (Spec, error) {
	var spec Spec

	if rawTree, ok := raw["tree"]; ok && rawTree != nil {
		tree, err := decodeGroup(rawTree)
		if err != nil {
			return Spec{}, fmt.Errorf("rules tree: %w", err)
		}
		spec.Tree = tree
	}

	if rawStages, ok := raw["stages"]; ok && rawStages != nil {
		var stages []Stage
		if err := mapstructure.WeakDecode(rawStages, &stages); err != nil {
			return Spec{}, fmt.Errorf("rules stages: %w", err)
		}
		spec.Stages = stages
	}

	return spec, nil
}

func decodeGroup(raw any) (*Group, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", raw)
	}

	op := GroupOp(strings.ToUpper(strings.TrimSpace(fmt.Sprintf("%v", m["operator"]))))
	if op != OpAnd && op != OpOr {
		return nil, fmt.Errorf("unknown group operator %q", m["operator"])
	}

	group := &Group{Op: op}

	rawChildren, _ := m["conditions"].([]any)
	for i, rawChild := range rawChildren {
		child, err := decodeNode(rawChild)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}
		group.Children = append(group.Children, child)
	}

	return group, nil
}

func decodeNode(raw any) (Node, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", raw)
	}

	// A nested group is recognized by its boolean operator plus child list.
	if op, ok := m["operator"].(string); ok {
		upper := strings.ToUpper(strings.TrimSpace(op))
		if _, hasConds := m["conditions"]; hasConds && (upper == string(OpAnd) || upper == string(OpOr)) {
			return decodeGroup(raw)
		}
	}

	var cond Condition
	if err := mapstructure.WeakDecode(m, &cond); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cond.Field) == "" {
		return nil, fmt.Errorf("condition field is required")
	}
	return &cond, nil
}
