// Package compiler turns CUE scenario files into scenario.Scenario values
// and analyzes compiled scenarios for watch feedback loops.
package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/dirtycheck/internal/scenario"
)

//go:embed schema.cue
var schemaSource string

// Schema returns the CUE source of the #Scenario schema.
func Schema() string {
	return schemaSource
}

// CompileFile reads and compiles a CUE scenario file.
func CompileFile(path string) (*scenario.Scenario, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Compile(path, src)
}

// Compile compiles CUE source into a validated scenario. filename is used
// for error positions only.
func Compile(filename string, src []byte) (*scenario.Scenario, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("scenario schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileScenario(schema.LookupPath(cue.ParsePath("#Scenario")), v)
}

// CompileScenario unifies v with the scenario schema, requires the result
// to be concrete, and decodes it.
//
// The unified value is exported as JSON and handed to scenario.Parse, so
// CUE scenarios go through the same cross-reference checks as YAML ones.
func CompileScenario(schema, v cue.Value) (*scenario.Scenario, error) {
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	data, err := unified.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}

	sc, err := scenario.Parse(data)
	if err != nil {
		return nil, &CompileError{
			Field:   "scenario",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return sc, nil
}

// CompileError is a compile failure with an optional source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
