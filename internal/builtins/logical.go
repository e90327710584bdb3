package builtins

// And and Or are strict: both operands were evaluated by the caller.
func And(a, b bool) bool { return a && b }
func Or(a, b bool) bool  { return a || b }
