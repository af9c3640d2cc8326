package finder

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// POMFileName is the name of a project descriptor
const POMFileName = "pom.xml"

// FindPOMFiles walks the workspace directory and returns every pom.xml,
// excluding build output directories and VCS metadata.
func FindPOMFiles(workspaceRoot string) ([]string, error) {
	var pomFiles []string

	err := filepath.WalkDir(workspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != workspaceRoot && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Name() == POMFileName {
			pomFiles = append(pomFiles, path)
		}
		return nil
	})

	return pomFiles, err
}

// skipDir reports whether a directory never holds reactor POMs: build
// output, node modules and hidden directories
func skipDir(name string) bool {
	return name == "target" || name == "node_modules" || strings.HasPrefix(name, ".")
}

// IsPOMFile reports whether path names a project descriptor
func IsPOMFile(path string) bool {
	return filepath.Base(path) == POMFileName
}
