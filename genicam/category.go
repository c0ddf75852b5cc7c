package genicam

// Category is spec.md §3's Category node: an ordered list of child feature
// names, non-leaf.
type Category struct {
	name     string
	children []string
}

func NewCategory(name string, children []string) *Category {
	return &Category{name: name, children: append([]string(nil), children...)}
}

func (n *Category) Name() string { return n.name }

// Children returns the ordered child feature names.
func (n *Category) Children() []string { return append([]string(nil), n.children...) }
