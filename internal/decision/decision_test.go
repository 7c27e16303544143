package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/enhance"
	"github.com/codescope/codescope/internal/types"
)

// fakeClient records calls and returns a canned response or error.
type fakeClient struct {
	calls int
	resp  *enhance.Response
	err   error
}

func (f *fakeClient) Enhance(ctx context.Context, req *enhance.Request) (*enhance.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func staticIssue(id string, severity types.Severity) types.Issue {
	return types.Issue{
		ID:          id,
		Category:    types.CategoryStyle,
		Severity:    severity,
		Title:       "finding",
		Suggestion:  "original suggestion",
		Source:      types.SourceStatic,
		ImpactScore: severity.ImpactScore(),
	}
}

func TestEligibilityThresholds(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)

	tests := []struct {
		name string
		in   Input
		want bool
	}{
		{
			name: "clean small file qualifies",
			in:   Input{Content: []byte("x = 1\n"), DependencyCount: 0},
			want: true,
		},
		{
			name: "one medium issue qualifies",
			in: Input{
				Content: []byte("x = 1\n"),
				Issues:  []types.Issue{staticIssue("a", types.SeverityMedium)},
			},
			want: true,
		},
		{
			name: "two issues disqualify",
			in: Input{
				Content: []byte("x = 1\n"),
				Issues: []types.Issue{
					staticIssue("a", types.SeverityLow),
					staticIssue("b", types.SeverityLow),
				},
			},
			want: false,
		},
		{
			name: "high severity disqualifies",
			in: Input{
				Content: []byte("x = 1\n"),
				Issues:  []types.Issue{staticIssue("a", types.SeverityHigh)},
			},
			want: false,
		},
		{
			name: "large file disqualifies",
			in:   Input{Content: make([]byte, 5000)},
			want: false,
		},
		{
			name: "too many dependencies disqualify",
			in:   Input{Content: []byte("x = 1\n"), DependencyCount: 3},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.Eligible(&tt.in))
		})
	}
}

func TestDecideSkipsCallForIneligibleFile(t *testing.T) {
	client := &fakeClient{resp: &enhance.Response{Truncated: true, Description: "d"}}
	engine := NewEngine(DefaultConfig(), client)

	issues := []types.Issue{staticIssue("sec_1", types.SeverityCritical)}
	out := engine.Decide(context.Background(), &Input{
		Path:    "app/auth.py",
		Content: []byte("eval(data)\n"),
		Issues:  issues,
	})

	assert.Equal(t, 0, client.calls)
	assert.Equal(t, issues, out.Issues)
	assert.False(t, out.Metadata.Truncated)
	assert.Nil(t, out.Warning)
}

func TestDecideMergesSuggestionsKeepingStaticFacts(t *testing.T) {
	client := &fakeClient{resp: &enhance.Response{
		Truncated:             true,
		Description:           "Small helper module.",
		BusinessImpact:        "Low",
		ArchitecturalConcerns: []string{"none"},
		Suggestions: map[string]string{
			"style_1":  "Prefer strict comparison here.",
			"unknown":  "dropped",
			"style_99": "",
		},
	}}
	engine := NewEngine(DefaultConfig(), client)

	in := &Input{
		Path:     "app/util.js",
		Language: "javascript",
		Content:  []byte("if (a == b) {}\n"),
		Issues:   []types.Issue{staticIssue("style_1", types.SeverityLow)},
	}
	out := engine.Decide(context.Background(), in)

	require.Equal(t, 1, client.calls)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, "Prefer strict comparison here.", out.Issues[0].Suggestion)
	assert.Equal(t, types.SourceMerged, out.Issues[0].Source)
	assert.Equal(t, types.SeverityLow, out.Issues[0].Severity)
	assert.Equal(t, types.CategoryStyle, out.Issues[0].Category)

	assert.True(t, out.Metadata.Truncated)
	assert.Equal(t, "Small helper module.", out.Metadata.Description)
	assert.Equal(t, "Low", out.Metadata.BusinessImpact)

	// Input issues stay untouched.
	assert.Equal(t, "original suggestion", in.Issues[0].Suggestion)
	assert.Equal(t, types.SourceStatic, in.Issues[0].Source)
}

func TestDecideTruncationRequiresDescription(t *testing.T) {
	client := &fakeClient{resp: &enhance.Response{Truncated: true, Description: ""}}
	engine := NewEngine(DefaultConfig(), client)

	out := engine.Decide(context.Background(), &Input{
		Path:    "app/empty.py",
		Content: []byte("pass\n"),
	})
	assert.False(t, out.Metadata.Truncated)
}

func TestDecideFallsBackToStaticOnFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("503 service unavailable")}
	engine := NewEngine(DefaultConfig(), client)

	issues := []types.Issue{staticIssue("style_1", types.SeverityLow)}
	out := engine.Decide(context.Background(), &Input{
		Path:    "app/util.py",
		Content: []byte("x = 1\n"),
		Issues:  issues,
	})

	assert.Equal(t, issues, out.Issues)
	require.NotNil(t, out.Warning)
	assert.Equal(t, types.WarnEnhancement, out.Warning.Kind)
	assert.Equal(t, "app/util.py", out.Warning.File)
	assert.False(t, out.Metadata.Truncated)
}

func TestNilClientDisablesEnhancement(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	out := engine.Decide(context.Background(), &Input{
		Path:    "app/tiny.py",
		Content: []byte("x = 1\n"),
	})
	assert.Nil(t, out.Warning)
	assert.False(t, out.Metadata.Truncated)
	assert.Empty(t, out.Issues)
}
