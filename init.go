package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/sitebuild/internal/config"
	"github.com/phobologic/sitebuild/internal/emit"
)

const (
	sentinelStart = "# sitebuild:start"
	sentinelEnd   = "# sitebuild:end"
)

const starterConfig = `{
  "projectType": "javascript",
  "publicDirectory": "public",
  "publicPath": "/",
  "defaultMarkupTemplate": "default",
  "vendorScripts": {},
  "vendorStyles": {},
  "staticScriptReferences": {},
  "staticStyleReferences": {},
  "modules": {},
  "layoutModules": {}
}
`

func newInitCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Ignore build output in .gitignore and write a starter config",
		Long: `Write a block listing every output directory to the project's .gitignore.
The block is wrapped in sentinel comments so later runs update it in place
without touching surrounding content. A starter ` + config.FileName + ` is written
when the project has none.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			return runInit(a, cfg, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")
	return cmd
}

func runInit(a *app, cfg *config.Config, dryRun bool) error {
	ignorePath := filepath.Join(cfg.ProjectDirectory, ".gitignore")
	existing, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", ignorePath, err)
	}
	updated := applySection(string(existing), generateSection(cfg))

	configPath := filepath.Join(cfg.ProjectDirectory, config.FileName)
	if a.configFile != "" {
		if configPath, err = filepath.Abs(a.configFile); err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
	}
	_, statErr := os.Stat(configPath)
	writeConfig := errors.Is(statErr, os.ErrNotExist)

	if dryRun {
		_, _ = fmt.Fprintf(a.stdout, "%s\n%s", titleStyle.Render(ignorePath), updated)
		if writeConfig {
			_, _ = fmt.Fprintf(a.stdout, "\n%s\n%s", titleStyle.Render(configPath), starterConfig)
		}
		return nil
	}

	if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}
	a.log.Info("updated ignore rules", "path", ignorePath)

	if writeConfig {
		if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
		a.log.Info("wrote starter config", "path", configPath)
	}
	return nil
}

// generateSection returns the sentinel-wrapped ignore rules for every
// directory a build cleans, relative to the project.
func generateSection(cfg *config.Config) string {
	lines := []string{sentinelStart, "# Generated by sitebuild init; edits inside this block are overwritten."}
	for _, dir := range emit.CleanDirectories(cfg, true) {
		rel, err := filepath.Rel(cfg.ProjectDirectory, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		lines = append(lines, "/"+filepath.ToSlash(rel)+"/")
	}
	lines = append(lines, sentinelEnd)
	return strings.Join(lines, "\n")
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
