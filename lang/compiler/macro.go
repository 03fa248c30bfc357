package compiler

import "github.com/mna/lispkit/lang/value"

// MacroExpand1Step expands form exactly one level if its head names a
// macro in the compiler's home package, returning form unchanged otherwise.
// Expansion runs the macro's compiled body on the VM via the compiler's
// Exec hook, passing the call's argument forms unevaluated.
func (c *Compiler) MacroExpand1Step(form value.Value) (value.Value, error) {
	cons, ok := form.(*value.Cons)
	if !ok {
		return form, nil
	}
	s, ok := cons.First.(*value.Symbol)
	if !ok {
		return form, nil
	}
	m, ok := c.Pkg.GetMacro(s)
	if !ok {
		return form, nil
	}
	return c.macroExpand1(m, cons)
}

// MacroExpandFull expands form one step, then recursively expands the
// children of the result wherever a child is itself a cons whose head is a
// symbol, mutating cons cells in place as it goes rather than allocating a
// fresh parallel tree, so callers must treat the input form as consumed.
// Compilation itself does not go through MacroExpandFull: compileForm
// expands a macro call one step and compiles the result.
func (c *Compiler) MacroExpandFull(form value.Value) (value.Value, error) {
	expanded, err := c.MacroExpand1Step(form)
	if err != nil {
		return nil, err
	}
	cons, ok := expanded.(*value.Cons)
	if !ok {
		return expanded, nil
	}
	for cur := cons; cur != nil; {
		if childCons, ok := cur.First.(*value.Cons); ok {
			if _, ok := childCons.First.(*value.Symbol); ok {
				newChild, err := c.MacroExpandFull(childCons)
				if err != nil {
					return nil, err
				}
				cur.First = newChild
			}
		}
		next, ok := cur.Rest.(*value.Cons)
		if !ok {
			break
		}
		cur = next
	}
	return cons, nil
}
