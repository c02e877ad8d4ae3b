package savable

import (
	"fmt"
	"strconv"

	"github.com/Neumenon/savable/doc"
)

// CursorState is the position of a Cursor in its traversal.
type CursorState uint8

const (
	// AtRoot is the initial state, before the root object is entered.
	AtRoot CursorState = iota
	// InObject means the current node is the field mapping of some object.
	InObject
	// Done is reached once the root object's Write or Read has returned.
	Done
)

// String returns the state name.
func (s CursorState) String() string {
	switch s {
	case AtRoot:
		return "at-root"
	case InObject:
		return "in-object"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// DefaultMaxDepth bounds object nesting when options leave MaxDepth zero.
const DefaultMaxDepth = 512

// frame is one object scope on the cursor stack.
type frame struct {
	node     *doc.Node // field mapping of the object in scope
	subject  Savable   // object being read or written
	id       string    // its type identifier
	versions []int     // class hierarchy versions, nil when none recorded
	path     string
}

// Cursor tracks which field mapping is in scope while a graph is walked.
//
// Every nested object is entered with a push and left with the matching
// pop, so after any field operation returns, Current is what it was before
// the operation started. The stack is owned by exactly one traversal.
type Cursor struct {
	stack    []frame
	state    CursorState
	maxDepth int
}

func newCursor(root *doc.Node, maxDepth int) *Cursor {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Cursor{
		stack:    []frame{{node: root}},
		maxDepth: maxDepth,
	}
}

// State returns the traversal state.
func (c *Cursor) State() CursorState { return c.state }

// Current returns the field mapping in scope.
func (c *Cursor) Current() *doc.Node { return c.top().node }

// Depth returns how many objects are entered below the root object.
func (c *Cursor) Depth() int { return len(c.stack) - 1 }

// Path returns a slash-separated location for error messages.
func (c *Cursor) Path() string {
	if p := c.top().path; p != "" {
		return p
	}
	return "/"
}

func (c *Cursor) top() *frame { return &c.stack[len(c.stack)-1] }

// enter binds the root object to the root frame.
func (c *Cursor) enter(subject Savable, id string, versions []int) error {
	if c.state != AtRoot {
		return fmt.Errorf("savable: enter root in state %s: %w", c.state, ErrCursor)
	}
	root := c.top()
	root.subject, root.id, root.versions = subject, id, versions
	c.state = InObject
	return nil
}

// Finish marks the traversal complete. Every Descend must have been
// matched by an Ascend.
func (c *Cursor) Finish() error {
	if len(c.stack) != 1 {
		return fmt.Errorf("savable: finish with %d open objects: %w", len(c.stack)-1, ErrCursor)
	}
	c.state = Done
	return nil
}

// Descend makes node, found under name in the current mapping, the
// current node. It must be paired with Ascend.
func (c *Cursor) Descend(name string, node *doc.Node) error {
	return c.descend(frame{node: node, path: c.childPath(name)})
}

func (c *Cursor) descend(f frame) error {
	if c.state != InObject {
		return fmt.Errorf("savable: descend in state %s: %w", c.state, ErrCursor)
	}
	if len(c.stack) > c.maxDepth {
		return &FieldError{Kind: ErrDepthExceeded, Path: f.path,
			Err: fmt.Errorf("nesting exceeds %d objects", c.maxDepth)}
	}
	c.stack = append(c.stack, f)
	return nil
}

// Ascend pops back to the enclosing object scope.
func (c *Cursor) Ascend() error {
	if len(c.stack) <= 1 {
		return fmt.Errorf("savable: ascend past root: %w", ErrCursor)
	}
	c.stack[len(c.stack)-1] = frame{}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// within runs fn with f in scope and always restores the previous scope.
func (c *Cursor) within(f frame, fn func() error) (err error) {
	if err := c.descend(f); err != nil {
		return err
	}
	depth := len(c.stack)
	defer func() {
		if len(c.stack) != depth {
			// fn left the stack unbalanced; restore it before popping.
			c.stack = c.stack[:depth]
			if err == nil {
				err = fmt.Errorf("savable: unbalanced cursor at %s: %w", f.path, ErrCursor)
			}
		}
		if aerr := c.Ascend(); aerr != nil && err == nil {
			err = aerr
		}
	}()
	return fn()
}

// childPath joins a field name (and optional indices) onto the current path.
func (c *Cursor) childPath(name string, indices ...int) string {
	p := c.top().path + "/" + name
	for _, i := range indices {
		p += "/" + strconv.Itoa(i)
	}
	return p
}
