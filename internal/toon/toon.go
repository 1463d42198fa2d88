// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// site summaries.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/sitebuild/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a site summary into TOON format.
func Encode(s *model.Summary) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(s.Project)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(s.Root)))

	var moduleRows [][]string
	for i := range s.Modules {
		m := &s.Modules[i]
		moduleRows = append(moduleRows, []string{
			m.Name,
			m.Layout,
			m.Template,
			strings.Join(m.Aliases, " "),
			strings.Join(m.Components, " "),
			strings.Join(m.Vendors, " "),
		})
	}
	parts = append(parts, formatTabular("modules", []string{"name", "layout", "template", "aliases", "components", "vendors"}, moduleRows))

	var layoutRows [][]string
	for i := range s.Layouts {
		l := &s.Layouts[i]
		layoutRows = append(layoutRows, []string{l.Name, l.Parent})
	}
	parts = append(parts, formatTabular("layouts", []string{"name", "parent"}, layoutRows))

	var componentRows [][]string
	for i := range s.Components {
		c := &s.Components[i]
		componentRows = append(componentRows, []string{c.Name, strconv.Itoa(c.Users)})
	}
	parts = append(parts, formatTabular("components", []string{"name", "users"}, componentRows))

	if len(s.Libraries) > 0 {
		var libraryRows [][]string
		for i := range s.Libraries {
			lib := &s.Libraries[i]
			libraryRows = append(libraryRows, []string{
				lib.Name,
				lib.Group.String(),
				lib.Entry,
				strconv.Itoa(lib.Dependencies),
			})
		}
		parts = append(parts, formatTabular("libraries", []string{"name", "group", "entry", "dependencies"}, libraryRows))
	}

	var fileRows [][]string
	for i := range s.Files {
		f := &s.Files[i]
		fileRows = append(fileRows, []string{
			f.Path,
			f.Kind.String(),
			fmt.Sprintf("%.4f", f.Rank),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "kind", "rank"}, fileRows))

	var importRows [][]string
	for i := range s.Imports {
		imp := &s.Imports[i]
		importRows = append(importRows, []string{imp.Source, imp.Target})
	}
	parts = append(parts, formatTabular("imports", []string{"source", "target"}, importRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
