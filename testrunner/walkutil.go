package testrunner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindScripts expands files and directories into the scripts they
// contain. Files named explicitly are kept whatever their extension;
// directories contribute their .yaml and .yml files in lexical order.
func FindScripts(paths []string) ([]string, error) {
	var scripts []string

	for _, root := range paths {
		found, err := walkScripts(root)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}

		scripts = append(scripts, found...)
	}

	return scripts, nil
}

// walkScripts skips VCS, vendor and hidden directories below root.
func walkScripts(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []string{root}, nil
	}

	var scripts []string

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}

			return nil
		}

		if isScriptFile(d.Name()) {
			scripts = append(scripts, p)
		}

		return nil
	})

	return scripts, err
}

func skipDir(name string) bool {
	return name == "vendor" || name == "node_modules" || strings.HasPrefix(name, ".")
}

func isScriptFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
