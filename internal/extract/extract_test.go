package extract

import (
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const cardHTML = `
<div class="card-inner" data-geek="geek-77">
  <span class="name">张三</span>
  <span class="edu">本科</span>
  <span class="experience">3年经验</span>
  <div class="expect-position">前端工程师</div>
  <div class="tags">
    <span class="tag">React</span>
    <span class="tag">Node.js</span>
    <span class="tag"> </span>
  </div>
</div>`

const detailHTML = `
<div class="detail">
  <h2>张三</h2>
  <div class="work-exps">
    <div class="timeline-item"><span class="company">Acme</span></div>
    <div class="timeline-item"><span class="company">Globex</span></div>
  </div>
  <div class="edu-exps">
    <div class="timeline-item"><span class="school">清华大学</span></div>
  </div>
</div>`

func selectionOf(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	return doc.Selection
}

func TestExtractCard(t *testing.T) {
	e := New(nil, zap.NewNop())
	rec := e.Extract(selectionOf(t, cardHTML))

	if rec.CardID != "geek-77" {
		t.Fatalf("expected card id from data attribute, got %q", rec.CardID)
	}
	if rec.Name != "张三" {
		t.Fatalf("unexpected name: %q", rec.Name)
	}
	if rec.Education != "本科" {
		t.Fatalf("unexpected education: %q", rec.Education)
	}
	if rec.YearsExperience != 3 {
		t.Fatalf("expected 3 years, got %d", rec.YearsExperience)
	}
	if rec.TargetPosition != "前端工程师" {
		t.Fatalf("unexpected position: %q", rec.TargetPosition)
	}

	wantSkills := []string{"React", "Node.js"}
	if !reflect.DeepEqual(rec.SkillTags, wantSkills) {
		t.Fatalf("expected skills %v, got %v", wantSkills, rec.SkillTags)
	}
	if rec.RawText == "" {
		t.Fatalf("raw text fallback must be captured")
	}
}

func TestExtractDetailArrays(t *testing.T) {
	e := New(nil, nil)
	rec := e.Extract(selectionOf(t, detailHTML))

	if !reflect.DeepEqual(rec.CompanyHistory, []string{"Acme", "Globex"}) {
		t.Fatalf("unexpected companies: %v", rec.CompanyHistory)
	}
	if !reflect.DeepEqual(rec.SchoolHistory, []string{"清华大学"}) {
		t.Fatalf("unexpected schools: %v", rec.SchoolHistory)
	}
}

func TestExtractMissingFieldsStayEmpty(t *testing.T) {
	e := New(nil, nil)
	rec, err := e.ExtractHTML(`<div class="card-inner"><span class="unrelated">nothing here</span></div>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Name != "" || rec.Education != "" || rec.TargetPosition != "" {
		t.Fatalf("expected empty scalars, got %+v", rec)
	}
	if rec.YearsExperience != 0 {
		t.Fatalf("missing experience must yield 0, got %d", rec.YearsExperience)
	}
	if rec.SkillTags != nil {
		t.Fatalf("expected no skills, got %v", rec.SkillTags)
	}
	if rec.CardID == "" {
		t.Fatalf("card id must still derive from raw text")
	}
}

func TestTextLocatorFallback(t *testing.T) {
	cascade := DefaultCascade()
	cascade[FieldEducation] = []string{".no-such-class", "text:本科"}

	e := New(cascade, nil)
	rec, err := e.ExtractHTML(`<div><p>学历要求</p><span>本科及以上</span></div>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Education != "本科及以上" {
		t.Fatalf("expected text locator fallback, got %q", rec.Education)
	}
}

func TestParseYears(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect int
	}{
		{"3年经验", 3},
		{"应届生", 0},
		{"10年以上", 10},
		{"经验 5 年", 5},
		{"worked 7 yrs", 7},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParseYears(tt.input); got != tt.expect {
			t.Fatalf("ParseYears(%q) = %d, expected %d", tt.input, got, tt.expect)
		}
	}
}
