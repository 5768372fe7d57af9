package handlers

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dipeoflow/engine/pkg/diagram"
	"github.com/dipeoflow/engine/pkg/dispatch"
)

// conditionCacheSize caps how many compiled expr programs stay resident,
// matching the teacher's condition_cache.go default.
const conditionCacheSize = 256

type compiledEntry struct {
	key     string
	program *vm.Program
}

// conditionCache is an LRU of compiled expr programs keyed by expression
// source text, directly grounded on the teacher's pkg/engine/condition_cache.go
// ConditionCache (container/list + map, evict-oldest-on-overflow).
type conditionCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

func newConditionCache(capacity int) *conditionCache {
	return &conditionCache{capacity: capacity, ll: list.New(), index: make(map[string]*list.Element)}
}

func (c *conditionCache) get(key string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*compiledEntry).program, true
	}
	return nil, false
}

func (c *conditionCache) put(key string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*compiledEntry).program = program
		return
	}
	el := c.ll.PushFront(&compiledEntry{key: key, program: program})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *conditionCache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.index, el.Value.(*compiledEntry).key)
}

func (c *conditionCache) compileAndCache(expression string) (*vm.Program, error) {
	if prog, ok := c.get(expression); ok {
		return prog, nil
	}
	prog, err := expr.Compile(expression, expr.Env(map[string]any{}), expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("handlers: compiling condition expression %q: %w", expression, err)
	}
	c.put(expression, prog)
	return prog, nil
}

// ConditionHandler evaluates a condition node's boolean expression against
// its resolved inputs, or (for detect_max_iterations) against the execution
// context's own iteration bookkeeping instead of an expr-lang expression.
type ConditionHandler struct {
	cache *conditionCache
}

// NewConditionHandler builds a handler with its own compiled-expression
// cache.
func NewConditionHandler() *ConditionHandler {
	return &ConditionHandler{cache: newConditionCache(conditionCacheSize)}
}

func (h *ConditionHandler) NodeType() diagram.NodeType { return diagram.NodeTypeCondition }

func (h *ConditionHandler) RequiresServices() []string { return nil }

func (h *ConditionHandler) Validate(props diagram.NodeProps) error {
	p, ok := props.(diagram.ConditionProps)
	if !ok {
		return fmt.Errorf("handlers: condition node given wrong props type %T", props)
	}
	if p.Kind == diagram.ConditionKindExpression && p.Expression == "" {
		return fmt.Errorf("handlers: condition node requires a non-empty expression")
	}
	if p.Kind == diagram.ConditionKindExpression {
		if _, err := expr.Compile(p.Expression, expr.Env(map[string]any{}), expr.AllowUndefinedVariables(), expr.AsBool()); err != nil {
			return fmt.Errorf("handlers: condition expression %q does not compile: %w", p.Expression, err)
		}
	}
	return nil
}

func (h *ConditionHandler) Execute(ctx context.Context, ec dispatch.ExecutionContext, props diagram.NodeProps, inputs map[string]any) (dispatch.NodeOutput, error) {
	p := props.(diagram.ConditionProps)

	var result bool
	switch p.Kind {
	case diagram.ConditionKindDetectMax:
		result, _ = inputs["max_iterations_reached"].(bool)
	default:
		prog, err := h.cache.compileAndCache(p.Expression)
		if err != nil {
			return dispatch.NodeOutput{}, err
		}
		env := map[string]any{"output": inputs}
		for k, v := range inputs {
			env[k] = v
		}
		out, err := expr.Run(prog, env)
		if err != nil {
			return dispatch.NodeOutput{}, fmt.Errorf("handlers: evaluating condition %q: %w", p.Expression, err)
		}
		result, _ = out.(bool)
	}

	var condTrue, condFalse any
	if result {
		condTrue = inputs
	} else {
		condFalse = inputs
	}

	return dispatch.NodeOutput{
		Value:     result,
		Result:    &result,
		CondTrue:  condTrue,
		CondFalse: condFalse,
	}, nil
}
