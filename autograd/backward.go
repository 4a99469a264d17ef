package autograd

// TopoSort orders every node reachable from root so that each node comes
// after all of its parents. Nodes are visited once even when shared by
// several children, and a visited set keeps the walk finite if a cycle was
// forced into the graph by hand.
//
// The depth-first walk keeps its own stack: a loss summed over a large
// dataset is a chain thousands of nodes deep.
func TopoSort(root *Value) []*Value {
	type frame struct {
		v    *Value
		next int
	}

	var topo []*Value
	visited := map[*Value]bool{root: true}
	stack := []frame{{v: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.v.parents) {
			p := top.v.parents[top.next]
			top.next++
			if !visited[p] {
				visited[p] = true
				stack = append(stack, frame{v: p})
			}
			continue
		}
		topo = append(topo, top.v)
		stack = stack[:len(stack)-1]
	}
	return topo
}

// Backward performs reverse-mode autodiff from v to all of its ancestors.
//
// Process:
//  1. Build the topological order of the graph under v.
//  2. Clear the gradients of intermediate nodes; they belong to this pass.
//  3. Seed v.Grad with 1 (dv/dv = 1).
//  4. Run each node's derivative rule in reverse order, children first.
//
// Leaf gradients are never cleared here. They accumulate across calls, so a
// caller reusing parameters must zero them before each pass.
func (v *Value) Backward() {
	Backward(v)
}

// Backward is the function form of (*Value).Backward.
func Backward(root *Value) {
	topo := TopoSort(root)
	for _, n := range topo {
		if !n.IsLeaf() {
			n.Grad = 0
		}
	}
	root.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		topo[i].propagate()
	}
}
