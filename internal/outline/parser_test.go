package outline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const threeOptions = `Here are your outlines.

# Outline Option 1
## Hook
Open with the reply-rate dip.
## Subject Line Candidates
- A
- B
- C

# Outline Option 2
## Subject Line Candidates
- D
- E

# Outline Option 3
- F
`

func TestParse_ExtractsFirstOption(t *testing.T) {
	res := Parse(threeOptions)

	assert.Equal(t, []string{"A", "B", "C"}, res.SubjectLines)
	assert.True(t, strings.HasPrefix(res.Option1, Option1Heading))
	assert.Contains(t, res.Option1, "Open with the reply-rate dip.")
	assert.NotContains(t, res.Option1, "Outline Option 2")
	assert.NotContains(t, res.Option1, "- D")
}

func TestParse_NoCandidatesHeading(t *testing.T) {
	res := Parse("# Outline Option 1\n## Hook\n- not a subject\n")
	assert.NotNil(t, res.SubjectLines)
	assert.Empty(t, res.SubjectLines)
}

func TestParse_MissingOption1HeadingIsReprefixed(t *testing.T) {
	raw := "## Subject Line Candidates\n- Only one\n"
	res := Parse(raw)
	assert.Equal(t, Option1Heading+"\n"+raw, res.Option1)
	assert.Equal(t, []string{"Only one"}, res.SubjectLines)
}

func TestParse_NoOption2RunsToEnd(t *testing.T) {
	res := Parse("intro\n# Outline Option 1\nbody\ntrailing text")
	assert.Equal(t, "# Outline Option 1\nbody\ntrailing text", res.Option1)
}

func TestSubjectLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "quotes stripped",
			in:   "## Subject Line Candidates\n- \"Quoted\"\n- “Curly”\n- 'single'\n",
			want: []string{"Quoted", "Curly", "single"},
		},
		{
			name: "unmarked lines before first entry are skipped",
			in:   "## Subject Line Candidates\n\nPick one of these:\n- X\n- Y\n",
			want: []string{"X", "Y"},
		},
		{
			name: "blank line ends the list",
			in:   "## Subject Line Candidates\n- X\n\n- Y\n",
			want: []string{"X"},
		},
		{
			name: "next heading ends the list",
			in:   "## Subject Line Candidates\n- X\n## Notes\n- Y\n",
			want: []string{"X"},
		},
		{
			name: "mixed markers",
			in:   "## Subject Line Candidates\n* star\n+ plus\n1. one\n2) two\n",
			want: []string{"star", "plus", "one", "two"},
		},
		{
			name: "heading present but list empty",
			in:   "## Subject Line Candidates\n",
			want: []string{},
		},
		{
			name: "empty markers before first entry do not open the list",
			in:   "## Subject Line Candidates\n-\n\n- \"\"\n- A\n- B\n",
			want: []string{"A", "B"},
		},
		{
			name: "bold text is not a marker",
			in:   "## Subject Line Candidates\n**Top picks**\n- X\n",
			want: []string{"X"},
		},
		{
			name: "empty candidate after stripping is dropped",
			in:   "## Subject Line Candidates\n- \"\"\n- X\n",
			want: []string{"X"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectLines(tt.in))
		})
	}
}
