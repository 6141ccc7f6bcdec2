package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/dirtycheck/internal/compiler"
	"github.com/roach88/dirtycheck/internal/scenario"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No scenario files found
	ErrCodeLoadFailed   = "E004" // Scenario file could not be read or parsed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeInvalid      = "E006" // Scenario failed validation
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeCUE          = "E008" // CUE syntax or schema error
	ErrCodeScenarioFail = "E101" // Scenario ran but did not pass
)

// LoadError represents an error that occurred while loading a scenario.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// scenarioExts lists the file extensions treated as scenarios.
var scenarioExts = []string{".yaml", ".yml", ".cue"}

func isScenarioFile(path string) bool {
	return slices.Contains(scenarioExts, filepath.Ext(path))
}

// LoadScenario loads a YAML or CUE scenario file, chosen by extension.
func LoadScenario(path string) (*scenario.Scenario, error) {
	var (
		sc  *scenario.Scenario
		err error
	)
	switch filepath.Ext(path) {
	case ".cue":
		sc, err = compiler.CompileFile(path)
	case ".yaml", ".yml":
		sc, err = scenario.Load(path)
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "unsupported scenario file extension"}
	}
	if err != nil {
		return nil, convertLoadError(path, err)
	}
	return sc, nil
}

// convertLoadError classifies a load failure and keeps CUE positions.
func convertLoadError(path string, err error) *LoadError {
	if errors.Is(err, fs.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Path: path, Message: "scenario file not found"}
	}

	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := ErrCodeCUE
		if compileErr.Field == "scenario" {
			code = ErrCodeInvalid
		}
		return &LoadError{Code: code, Path: path, Message: compileErr.Message, Pos: compileErr.Pos}
	}

	code := ErrCodeLoadFailed
	if strings.Contains(err.Error(), "invalid scenario") {
		code = ErrCodeInvalid
	}
	return &LoadError{Code: code, Path: path, Message: err.Error()}
}

// FindScenarioFiles expands paths into scenario files. Directories are
// walked recursively; files are taken as given. filter is a glob matched
// against file names without their extension. The result is sorted and
// free of duplicates.
func FindScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string

	add := func(path string) error {
		if filter != "" {
			base := filepath.Base(path)
			name := strings.TrimSuffix(base, filepath.Ext(base))
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, filepath.Clean(path))
		return nil
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: root, Message: "path not found"}
		}
		if !info.IsDir() {
			if err := add(root); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isScenarioFile(path) {
				return nil
			}
			return add(path)
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Path: root, Message: err.Error()}
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}
