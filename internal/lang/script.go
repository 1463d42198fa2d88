package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/phobologic/sitebuild/internal/model"
)

func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Group:      model.Script,
		Extensions: []string{".js", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
	}
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Group:      model.Script,
		Extensions: []string{".ts", ".mts", ".cts"},
		lang:       typescript.GetLanguage(),
	}
}
