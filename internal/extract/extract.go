// Package extract turns rendered DOM fragments into candidate records. The
// page markup is not controlled by this tool, so every field is resolved
// through an ordered cascade of locators and missing fields stay empty
// instead of failing the caller.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/avoronkov/talent-scout/internal/candidate"
)

// Field is a logical field the extractor knows how to resolve.
type Field string

const (
	FieldName       Field = "name"
	FieldEducation  Field = "education"
	FieldExperience Field = "experience"
	FieldCompany    Field = "company"
	FieldSchool     Field = "school"
	FieldPosition   Field = "position"
	FieldSkills     Field = "skills"
)

// Cascade maps each logical field to an ordered list of locator expressions.
// Expressions are CSS selectors by default; "text:<substr>" matches elements
// whose own text contains the substring, "attr:<name>" reads an attribute off
// the fragment root. Earlier entries win.
type Cascade map[Field][]string

// DefaultCascade covers the currently known card and detail markup of the
// supported site. The config file can override any field when the site
// reshuffles its class names again.
func DefaultCascade() Cascade {
	return Cascade{
		FieldName:       {".name", ".geek-name", ".candidate-name", "h2"},
		FieldEducation:  {".edu", ".degree", "text:本科", "text:硕士", "text:大专"},
		FieldExperience: {".experience", ".work-exp", "text:年"},
		FieldCompany:    {".company", ".work-exps .company", ".timeline-item .company"},
		FieldSchool:     {".school", ".edu-exps .school", ".timeline-item .school"},
		FieldPosition:   {".expect-position", ".position", ".job-name"},
		FieldSkills:     {".tags .tag", ".tag-list span", ".labels li"},
	}
}

// arrayFields collect every match instead of the first one.
var arrayFields = map[Field]bool{
	FieldCompany: true,
	FieldSchool:  true,
	FieldSkills:  true,
}

// idAttrs are tried in order when deriving a stable card id from the
// fragment root.
var idAttrs = []string{"data-geek", "data-id", "data-uid", "id"}

var (
	yearsMarkerRe = regexp.MustCompile(`(\d+)\s*年`)
	firstIntRe    = regexp.MustCompile(`\d+`)
)

// Extractor resolves candidate facts from goquery selections.
type Extractor struct {
	cascade Cascade
	logger  *zap.Logger
}

// New creates an extractor. An empty cascade falls back to the defaults and
// a nil logger to a no-op one.
func New(cascade Cascade, logger *zap.Logger) *Extractor {
	if len(cascade) == 0 {
		cascade = DefaultCascade()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cascade: cascade, logger: logger}
}

// Extract builds a partial record from the fragment. Unresolvable fields are
// left zero-valued.
func (e *Extractor) Extract(root *goquery.Selection) candidate.Record {
	rec := candidate.Record{
		Name:           e.scalar(root, FieldName),
		Education:      e.scalar(root, FieldEducation),
		TargetPosition: e.scalar(root, FieldPosition),
		CompanyHistory: e.array(root, FieldCompany),
		SchoolHistory:  e.array(root, FieldSchool),
		SkillTags:      e.array(root, FieldSkills),
		RawText:        normalizeSpace(root.Text()),
	}

	rec.YearsExperience = ParseYears(e.scalar(root, FieldExperience))
	rec.CardID = candidate.DeriveCardID(domID(root), rec.Name, rec.TargetPosition, rec.RawText)

	return rec
}

// ExtractHTML parses the fragment from raw HTML and extracts from its body.
func (e *Extractor) ExtractHTML(html string) (candidate.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return candidate.Record{}, err
	}
	return e.Extract(doc.Selection), nil
}

func (e *Extractor) scalar(root *goquery.Selection, field Field) string {
	for _, expr := range e.cascade[field] {
		for _, text := range resolve(root, expr) {
			if text != "" {
				return text
			}
		}
	}
	return ""
}

func (e *Extractor) array(root *goquery.Selection, field Field) []string {
	for _, expr := range e.cascade[field] {
		texts := resolve(root, expr)
		if len(texts) > 0 {
			return texts
		}
	}
	return nil
}

// resolve runs one locator expression and returns the non-empty texts it
// matched, in document order.
func resolve(root *goquery.Selection, expr string) []string {
	expr = strings.TrimSpace(expr)

	switch {
	case strings.HasPrefix(expr, "attr:"):
		if v, ok := root.Attr(strings.TrimPrefix(expr, "attr:")); ok {
			if v = strings.TrimSpace(v); v != "" {
				return []string{v}
			}
		}
		return nil
	case strings.HasPrefix(expr, "text:"):
		return textMatch(root, strings.TrimPrefix(expr, "text:"))
	case expr == "":
		return nil
	default:
		return cssMatch(root, expr)
	}
}

func cssMatch(root *goquery.Selection, selector string) []string {
	var texts []string
	root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := normalizeSpace(s.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// textMatch finds leaf-ish elements whose own text contains the substring.
// It is the heuristic fallback for markup where class names drifted away
// from the cascade.
func textMatch(root *goquery.Selection, substr string) []string {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return nil
	}

	var texts []string
	root.Find("span, div, p, li, em").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if text := normalizeSpace(s.Text()); text != "" && strings.Contains(text, substr) {
			texts = append(texts, text)
		}
	})
	return texts
}

// ParseYears extracts a years-of-experience count from free text: a number
// followed by the year marker, else the first integer. Absence yields 0.
func ParseYears(text string) int {
	if m := yearsMarkerRe.FindStringSubmatch(text); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if m := firstIntRe.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return 0
}

func domID(root *goquery.Selection) string {
	for _, attr := range idAttrs {
		if v, ok := root.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	// The enumerated card element may wrap the attributed node.
	for _, attr := range idAttrs {
		if v, ok := root.Find("[" + attr + "]").First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
