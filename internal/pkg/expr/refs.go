package expr

// CollectRefs returns every dotted field path referenced by an expression.
// The contract uses it to tell the parser which elements a selective
// extraction must keep.
func CollectRefs(e Expr) []string {
	var refs []string
	collect(e, &refs)
	return refs
}

func collect(e Expr, refs *[]string) {
	switch n := e.(type) {
	case *FieldRef:
		*refs = append(*refs, n.Path)
	case *Binary:
		collect(n.L, refs)
		collect(n.R, refs)
	case *Negate:
		collect(n.X, refs)
	case *Compare:
		collect(n.L, refs)
		collect(n.R, refs)
	case *Logical:
		collect(n.L, refs)
		collect(n.R, refs)
	case *CaseExpr:
		for _, w := range n.Whens {
			collect(w.Cond, refs)
			collect(w.Then, refs)
		}
		if n.Else != nil {
			collect(n.Else, refs)
		}
	case *Like:
		collect(n.X, refs)
	case *NullCheck:
		collect(n.X, refs)
	case *DateCast:
		collect(n.X, refs)
	case *DateAdd:
		if n.Amount != nil {
			collect(n.Amount, refs)
		}
		collect(n.D, refs)
	}
}
