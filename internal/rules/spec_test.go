package rules

import "testing"

func TestDecodeSpecStages(t *testing.T) {
	raw := map[string]any{
		"stages": []any{
			map[string]any{
				"type":       "position",
				"keywords":   []any{"前端", "web"},
				"must_match": true,
				"enabled":    true,
				"order":      0,
			},
			map[string]any{
				"type":       "skills",
				"keywords":   []any{"React"},
				"pass_score": 70,
				"enabled":    true,
				"order":      1,
			},
		},
	}

	spec, err := DecodeSpec(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(spec.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(spec.Stages))
	}
	if !spec.Stages[0].MustMatch || len(spec.Stages[0].Keywords) != 2 {
		t.Fatalf("unexpected first stage: %+v", spec.Stages[0])
	}
	if spec.Stages[1].PassScore == nil || *spec.Stages[1].PassScore != 70 {
		t.Fatalf("expected pass score 70, got %+v", spec.Stages[1].PassScore)
	}
}

func TestDecodeSpecTree(t *testing.T) {
	raw := map[string]any{
		"tree": map[string]any{
			"operator": "and",
			"conditions": []any{
				map[string]any{"field": "skills", "operator": "contains", "value": "React"},
				map[string]any{
					"operator": "OR",
					"conditions": []any{
						map[string]any{"field": "education", "operator": "equals", "value": "本科"},
						map[string]any{"field": "experience", "operator": "greaterThan", "value": 5},
					},
				},
			},
		},
	}

	spec, err := DecodeSpec(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Tree == nil || spec.Tree.Op != OpAnd {
		t.Fatalf("unexpected tree: %+v", spec.Tree)
	}
	if len(spec.Tree.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(spec.Tree.Children))
	}

	nested, ok := spec.Tree.Children[1].(*Group)
	if !ok || nested.Op != OpOr || len(nested.Children) != 2 {
		t.Fatalf("expected nested OR group, got %+v", spec.Tree.Children[1])
	}
}

func TestDecodeSpecErrors(t *testing.T) {
	if _, err := DecodeSpec(map[string]any{"tree": map[string]any{"operator": "XOR"}}); err == nil {
		t.Fatalf("expected error for unknown group operator")
	}

	raw := map[string]any{
		"tree": map[string]any{
			"operator":   "AND",
			"conditions": []any{map[string]any{"operator": "equals", "value": "x"}},
		},
	}
	if _, err := DecodeSpec(raw); err == nil {
		t.Fatalf("expected error for condition without field")
	}
}

func TestSortedStages(t *testing.T) {
	spec := Spec{Stages: []Stage{
		{Type: "b", Order: 2, Enabled: true},
		{Type: "disabled", Order: 0, Enabled: false},
		{Type: "a", Order: 1, Enabled: true},
	}}

	sorted := spec.SortedStages()
	if len(sorted) != 2 {
		t.Fatalf("expected disabled stages dropped, got %d", len(sorted))
	}
	if sorted[0].Type != "a" || sorted[1].Type != "b" {
		t.Fatalf("stages out of order: %+v", sorted)
	}
}
