package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/sortie/internal/classifier"
	"github.com/dyluth/sortie/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Files created by Initialize, relative to the target directory.
const (
	MissionFile = "sortie.yml"
	ModelFile   = "models/triage.yml"
)

// FileInfo is a file to be created during initialization.
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes an example mission and triage model into dir.
// With force set, existing files are replaced.
func Initialize(dir string, force bool) error {
	if force {
		if err := handleForce(dir); err != nil {
			return err
		}
	} else if err := CheckExisting(dir); err != nil {
		return err
	}

	files, err := getTemplateFiles()
	if err != nil {
		return err
	}

	if err := writeFiles(dir, files); err != nil {
		return err
	}

	return validateCreatedFiles(dir)
}

func handleForce(dir string) error {
	for _, name := range []string{MissionFile, ModelFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fmt.Printf("⚠️  Removing existing %s...\n", name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func getTemplateFiles() ([]FileInfo, error) {
	templates := []struct {
		name string
		path string
	}{
		{"templates/sortie.yml.tmpl", MissionFile},
		{"templates/triage.yml.tmpl", ModelFile},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, tmpl := range templates {
		content, err := templatesFS.ReadFile(tmpl.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", tmpl.path, err)
		}
		files = append(files, FileInfo{Path: tmpl.path, Content: content, Permissions: 0644})
	}
	return files, nil
}

func writeFiles(dir string, files []FileInfo) error {
	for _, file := range files {
		path := filepath.Join(dir, file.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", file.Path, err)
		}
		if err := os.WriteFile(path, file.Content, file.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}
	return nil
}

// validateCreatedFiles loads the written mission and model the same way `sortie run` does.
func validateCreatedFiles(dir string) error {
	cfg, err := config.Load(filepath.Join(dir, MissionFile))
	if err != nil {
		return fmt.Errorf("created %s is invalid: %w", MissionFile, err)
	}
	if _, err := classifier.LoadTree(cfg.Classifier.Model); err != nil {
		return fmt.Errorf("created %s is invalid: %w", ModelFile, err)
	}
	return nil
}

// PrintSuccess prints the created files and next steps.
func PrintSuccess(dir string) {
	fmt.Println("\n✅ Successfully initialized a Sortie mission!")
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", filepath.Join(dir, MissionFile))
	fmt.Printf("  ✓ %s\n", filepath.Join(dir, ModelFile))
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the grid, walls and targets in sortie.yml")
	fmt.Println("  2. Check it with 'sortie validate -f sortie.yml'")
	fmt.Println("  3. Run it with 'sortie run -f sortie.yml'")
}
