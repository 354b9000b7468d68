package extract

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

const (
	para1 = "첫번째 문단은 여기에 있습니다"
	para2 = "두번째 문단은 여기에 있습니다"
	para3 = "세번째 문단은 여기에 있습니다"
	para4 = "네번째 문단은 여기에 있습니다"
)

func TestPreviewJoinsSecondAndThird(t *testing.T) {
	body := `<div>` +
		`<p class="stb-bold">` + para1 + `</p>` +
		`<p class="stb-fore-colored">` + para2 + `</p>` +
		`<p class="stb-bold">` + para3 + `</p>` +
		`<p class="stb-bold">` + para4 + `</p>` +
		`</div>`

	assert.Equal(t, para2+" "+para3, Preview(body))
}

func TestPreviewSingleCandidate(t *testing.T) {
	body := `<div>` +
		`<p class="stb-bold">짧은 글</p>` +
		`<a class="stb-bold" href="https://brand.example">` + para2 + `</a>` +
		`<p class="stb-bold" style="color: #ff0000;">` + para3 + `</p>` +
		`<p class="stb-bold">` + para1 + `</p>` +
		`</div>`

	assert.Equal(t, para1, Preview(body))
}

func TestPreviewNoCandidates(t *testing.T) {
	body := `<div><p class="stb-bold">English only paragraph with no Hangul</p></div>`
	assert.Equal(t, "", Preview(body))
	assert.Equal(t, "", Preview(""))
}

func TestPreviewBlackTextKept(t *testing.T) {
	body := `<p class="stb-bold" style="font-size: 14px; color: #000000;">` + para1 + `</p>`
	assert.Equal(t, para1, Preview(body))
}

func TestPreviewFallbackToAllElements(t *testing.T) {
	body := `<p>` + para1 + `</p>`
	assert.Equal(t, para1, Preview(body))
}

func TestPreviewFallbackWithDocument(t *testing.T) {
	body := `<html><body><p>` + para1 + `</p><p>` + para2 + `</p></body></html>`
	// html, body, p, p: the second and third candidates are body and the first paragraph.
	assert.Equal(t, para1+para2+" "+para1, Preview(body))
}

func TestPreviewLengthBoundary(t *testing.T) {
	ten := "가나다라마바사아자차"
	eleven := ten + "카"

	assert.Equal(t, "", Preview(`<p class="stb-bold">`+ten+`</p>`))
	assert.Equal(t, eleven, Preview(`<p class="stb-bold">`+eleven+`</p>`))
}

func TestPlainBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "media style removed",
			in:   "<style type=\"text/css\">@media only screen { a { color: red } }</style><p>Hello</p>\n\n<b>World</b>",
			want: "Hello World",
		},
		{
			name: "plain style kept as text",
			in:   "<style>p{margin:0}</style><p>안녕</p>",
			want: "p{margin:0} 안녕",
		},
		{
			name: "whitespace collapsed",
			in:   "  a\t\tb\r\n c  d  ",
			want: "a b c d",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainBody(tt.in))
		})
	}
}

func TestPlainBodyProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("output has no tags or doubled spaces", prop.ForAll(
		func(s string) bool {
			out := PlainBody(s)
			return !tagRe.MatchString(out) &&
				!strings.Contains(out, "  ") &&
				out == strings.TrimSpace(out)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
