package service

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/lyzr/registry/cmd/registry/models"
)

// FilterEvaluator matches assets against CEL expressions such as
//
//	owner == "alice" && file_name.endsWith(".png") && size < 1048576
//
// Variables: id, owner, file_name (string) and size (int, bytes).
type FilterEvaluator struct {
	env     *cel.Env
	cache   map[string]cel.Program
	maxSize int
	mu      sync.RWMutex
}

// NewFilterEvaluator creates an evaluator caching up to maxSize programs
func NewFilterEvaluator(maxSize int) (*FilterEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("owner", cel.StringType),
		cel.Variable("file_name", cel.StringType),
		cel.Variable("size", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 128
	}

	return &FilterEvaluator{
		env:     env,
		cache:   make(map[string]cel.Program),
		maxSize: maxSize,
	}, nil
}

// Filter is a compiled expression
type Filter struct {
	prg cel.Program
}

// Compile returns the program for expr, compiling it on first use
func (e *FilterEvaluator) Compile(expr string) (*Filter, error) {
	e.mu.RLock()
	prg, exists := e.cache[expr]
	e.mu.RUnlock()

	if exists {
		return &Filter{prg: prg}, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidFilter, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", models.ErrInvalidFilter, ast.OutputType())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidFilter, err)
	}

	e.mu.Lock()
	if len(e.cache) >= e.maxSize {
		e.cache = make(map[string]cel.Program)
	}
	e.cache[expr] = prg
	e.mu.Unlock()

	return &Filter{prg: prg}, nil
}

// Match evaluates the filter for one asset
func (f *Filter) Match(id string, asset *models.Asset) (bool, error) {
	out, _, err := f.prg.Eval(map[string]interface{}{
		"id":        id,
		"owner":     asset.Owner.String(),
		"file_name": asset.FileName,
		"size":      int64(asset.Size()),
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrInvalidFilter, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression did not return boolean, got %T", models.ErrInvalidFilter, out.Value())
	}
	return result, nil
}

// CacheSize returns the number of cached expressions
func (e *FilterEvaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
