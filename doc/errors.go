package doc

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// PathError locates a parse failure inside a document, outermost segment
// first: array[2]: object["name"]: <cause>.
type PathError struct {
	// Segments are stored innermost first while the error travels up.
	segments []string
	Err      error
}

// Path returns the segments outermost first.
func (e *PathError) Path() []string {
	p := slices.Clone(e.segments)
	slices.Reverse(p)
	return p
}

func (e *PathError) Error() string {
	var b strings.Builder
	for i := len(e.segments) - 1; i >= 0; i-- {
		b.WriteString(e.segments[i])
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *PathError) Unwrap() error { return e.Err }

// inElement records that err happened inside list element i. The segment
// is appended to an existing PathError so deep failures stay linear.
func inElement(i int, err error) error {
	return atSegment(fmt.Sprintf("array[%d]", i), err)
}

// inField records that err happened under map key.
func inField(key string, err error) error {
	return atSegment(fmt.Sprintf("object[%q]", key), err)
}

func atSegment(seg string, err error) error {
	var pe *PathError
	if errors.As(err, &pe) {
		pe.segments = append(pe.segments, seg)
		return pe
	}
	return &PathError{segments: []string{seg}, Err: err}
}
