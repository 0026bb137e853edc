package cuesheet

// Node is a line of the sheet together with the lines nested below it.
// The root node has no line.
type Node struct {
	Line     *Line
	Children []*Node
}

// openNode is a node whose children are still being collected.
type openNode struct {
	node        *Node
	indentation int
}

// BuildTree folds lines into a tree using indentation as the nesting depth.
//
// Deeper lines are pushed onto a stack of open nodes. A line that is not
// deeper than the top of the stack closes that node: it is popped and
// attached to its parent, repeating until the line fits. Whatever is still
// open once the input ends is collapsed into the root the same way.
func BuildTree(lines []Line) *Node {
	root := &Node{}
	stack := []openNode{{node: root, indentation: -1}}

	closeTop := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, top.node)
	}

	for i := range lines {
		line := lines[i]
		for len(stack) > 1 && line.Indentation <= stack[len(stack)-1].indentation {
			closeTop()
		}
		stack = append(stack, openNode{
			node:        &Node{Line: &line},
			indentation: line.Indentation,
		})
	}

	for len(stack) > 1 {
		closeTop()
	}

	return root
}
