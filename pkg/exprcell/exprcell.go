// Package exprcell derives cells from expression strings.
//
// An expression cell is a derived cell whose compute function evaluates
// a compiled github.com/expr-lang/expr program. Identifiers in the
// expression resolve to named cells in the store, so
//
//	total, _ := exprcell.Derive(store, "price * quantity")
//
// recomputes whenever the "price" or "quantity" cell changes. This
// gives configuration-driven derivations the same propagation,
// memoization, and failure semantics as hand-written compute functions.
package exprcell

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

// identCollector gathers the identifiers an expression references.
type identCollector struct {
	names []string
	seen  map[string]struct{}
}

func (v *identCollector) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, dup := v.seen[id.Value]; dup {
		return
	}
	v.seen[id.Value] = struct{}{}
	v.names = append(v.names, id.Value)
}

// compile parses the expression and returns the compiled program along
// with the cell names it references.
func compile(expression string) (*exprvm.Program, []string, error) {
	if expression == "" {
		return nil, nil, fmt.Errorf("exprcell: expression must not be empty")
	}
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, nil, fmt.Errorf("exprcell: parse %q: %w", expression, err)
	}
	collector := &identCollector{seen: make(map[string]struct{})}
	ast.Walk(&tree.Node, collector)

	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("exprcell: compile %q: %w", expression, err)
	}
	return program, collector.names, nil
}

// Derive creates a derived cell evaluating expression over the store's
// named cells. The program is compiled once; each recomputation reads
// the referenced cells (recording dependency edges) and runs the
// program against their values. A reference to a name with no cell
// poisons the expression cell with ErrUnknownCell.
func Derive(s *reactive.Store, expression string, opts ...reactive.CellOption) (reactive.Derived[any], error) {
	program, names, err := compile(expression)
	if err != nil {
		return reactive.Derived[any]{}, err
	}

	compute := func() (any, error) {
		env := make(map[string]any, len(names))
		for _, name := range names {
			h, ok := s.Lookup(name)
			if !ok {
				return nil, fmt.Errorf("%w: %q referenced by %q", reactive.ErrUnknownCell, name, expression)
			}
			v, err := s.Read(h)
			if err != nil {
				return nil, err
			}
			env[name] = v
		}
		return exprlang.Run(program, env)
	}

	h, err := s.Derive(compute, opts...)
	if err != nil {
		return reactive.Derived[any]{}, err
	}
	return reactive.DerivedOf[any](h), nil
}
