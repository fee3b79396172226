package page

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	c := NewClassifier(nil, nil)

	tests := []struct {
		name   string
		url    string
		expect Kind
	}{
		{
			name:   "recommend list page",
			url:    "https://www.example.com/web/chat/recommend?jobId=42",
			expect: KindList,
		},
		{
			name:   "detail page",
			url:    "https://www.example.com/web/chat/detail?uid=abc",
			expect: KindDetail,
		},
		{
			name:   "detail wins over list prefix",
			url:    "https://www.example.com/web/frame/geek/xyz",
			expect: KindDetail,
		},
		{
			name:   "unrelated page",
			url:    "https://www.example.com/about",
			expect: KindUnknown,
		},
		{
			name:   "empty input",
			url:    "",
			expect: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.Classify(tt.url); got != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestClassifyCustomFragments(t *testing.T) {
	c := NewClassifier([]string{"/candidates"}, []string{"/candidates/view"})

	if got := c.Classify("https://hr.example.com/candidates?page=2"); got != KindList {
		t.Fatalf("expected list, got %s", got)
	}
	if got := c.Classify("https://hr.example.com/candidates/view/9"); got != KindDetail {
		t.Fatalf("expected detail, got %s", got)
	}
}
