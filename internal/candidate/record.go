// Package candidate holds the structured facts extracted for a single
// candidate and the merge semantics between card-level and detail-level
// extractions.
package candidate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Record is a best-effort snapshot of a candidate profile. Every field may be
// absent: the host page's markup is an uncontrolled dependency and the
// extractor degrades instead of failing. A Record is treated as an immutable
// value once it reaches evaluation.
type Record struct {
	CardID          string   `json:"card_id"`
	Name            string   `json:"name,omitempty"`
	Education       string   `json:"education,omitempty"`
	YearsExperience int      `json:"years_experience,omitempty"`
	CompanyHistory  []string `json:"company_history,omitempty"`
	SchoolHistory   []string `json:"school_history,omitempty"`
	TargetPosition  string   `json:"target_position,omitempty"`
	SkillTags       []string `json:"skill_tags,omitempty"`
	RawText         string   `json:"raw_text,omitempty"`
}

// DeriveCardID computes a stable id for dedup within a run. It prefers an id
// the page itself exposes; otherwise it hashes the identifying facts so the
// same card re-surfaced by a mutation observer maps to the same id.
func DeriveCardID(domID, name, position, rawText string) string {
	if id := strings.TrimSpace(domID); id != "" {
		return id
	}

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(name)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(position)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(rawText)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Merge combines a card-level record with the richer detail-level one. Array
// fields are unioned preserving first-seen order; scalar fields take the
// detail value only when it is non-empty. Neither input is mutated.
func Merge(card, detail Record) Record {
	merged := card

	if v := strings.TrimSpace(detail.Name); v != "" {
		merged.Name = v
	}
	if v := strings.TrimSpace(detail.Education); v != "" {
		merged.Education = v
	}
	if v := strings.TrimSpace(detail.TargetPosition); v != "" {
		merged.TargetPosition = v
	}
	if v := strings.TrimSpace(detail.RawText); v != "" {
		merged.RawText = v
	}
	if detail.YearsExperience > 0 {
		merged.YearsExperience = detail.YearsExperience
	}

	merged.CompanyHistory = unionStrings(card.CompanyHistory, detail.CompanyHistory)
	merged.SchoolHistory = unionStrings(card.SchoolHistory, detail.SchoolHistory)
	merged.SkillTags = unionStrings(card.SkillTags, detail.SkillTags)

	return merged
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Field returns the value addressed by a rule field path. Scalar fields come
// back as strings or ints, array fields as []string. The "rawData." prefix
// (and unknown paths) fall back to the free-text blob so fuzzy rules keep
// working when structured extraction came up empty.
func (r Record) Field(path string) any {
	switch strings.TrimSpace(path) {
	case "name":
		return r.Name
	case "education", "degree":
		return r.Education
	case "experience", "yearsExperience":
		return r.YearsExperience
	case "company", "companyHistory":
		return r.CompanyHistory
	case "school", "schoolHistory":
		return r.SchoolHistory
	case "position", "targetPosition":
		return r.TargetPosition
	case "skills", "skillTags":
		return r.SkillTags
	case "rawText":
		return r.RawText
	}

	if strings.HasPrefix(path, "rawData.") {
		return r.RawText
	}

	return r.RawText
}

// Summary returns a compact one-line description for journal entries.
func (r Record) Summary() string {
	parts := make([]string, 0, 3)
	if r.Name != "" {
		parts = append(parts, r.Name)
	}
	if r.TargetPosition != "" {
		parts = append(parts, r.TargetPosition)
	}
	if len(r.SkillTags) > 0 {
		parts = append(parts, strings.Join(r.SkillTags, "/"))
	}
	if len(parts) == 0 {
		return r.CardID
	}
	return strings.Join(parts, " | ")
}
