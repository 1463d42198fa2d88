package lang

import (
	"regexp"

	"github.com/smacker/go-tree-sitter/css"

	"github.com/phobologic/sitebuild/internal/model"
)

// The CSS grammar has no rule for Sass module loading, so @use and @forward
// are matched at the start of a line.
var sassModuleRe = regexp.MustCompile(`(?m)^[ \t]*@(?:use|forward)[ \t]+(?:"([^"]+)"|'([^']+)')`)

func init() {
	Languages["css"] = &Language{
		Name:       "css",
		Group:      model.Style,
		Extensions: []string{".scss", ".css"},
		lang:       css.GetLanguage(),
		Supplement: sassModuleSpecifiers,
	}
}

func sassModuleSpecifiers(source []byte) []string {
	var out []string
	for _, m := range sassModuleRe.FindAllSubmatch(source, -1) {
		if len(m[1]) > 0 {
			out = append(out, string(m[1]))
		} else {
			out = append(out, string(m[2]))
		}
	}
	return out
}
