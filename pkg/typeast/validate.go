package typeast

import (
	"fmt"

	"github.com/blockberries/pickle/internal/wire"
)

// ErrMalformedAST indicates an AST violates one of the structural
// invariants in distilled spec §3. Analyse already builds
// well-formed ASTs by construction; Validate exists for ASTs built or
// transmitted by other means (tests, future on-disk caches) and is run
// as a cheap assertion over ASTs this package itself produced.
var ErrMalformedAST = fmt.Errorf("pickle: malformed type AST")

// Validate checks the invariants from distilled spec §3:
//
//   - every prefix with an unmatched container opens exactly one
//     pending slot (two for MAP, consumed left-then-right around
//     MAP_SEPARATOR);
//   - the sequence terminates in a leaf;
//   - for MAP, exactly one MAP_SEPARATOR appears between its key
//     sub-AST and its value sub-AST.
// pending tracks one still-open container frame on Validate's stack.
type pending struct {
	mapSlotsLeft int // >0 only while inside a MAP before its separator
}

func Validate(ast AST) error {
	if len(ast) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedAST)
	}

	var stack []pending

	for i, n := range ast {
		switch {
		case n.Tag.IsContainer():
			stack = append(stack, pending{})
			if n.Tag == wire.TagMap {
				stack[len(stack)-1].mapSlotsLeft = 1
			}
		case n.Tag == wire.TagMapSeparator:
			if len(stack) == 0 || stack[len(stack)-1].mapSlotsLeft != 1 {
				return fmt.Errorf("%w: unexpected MAP_SEPARATOR at position %d", ErrMalformedAST, i)
			}
			stack[len(stack)-1].mapSlotsLeft = 0
		default: // leaf
			stack = popClosed(stack)
		}
	}

	if len(stack) != 0 {
		return fmt.Errorf("%w: unclosed container at end of AST", ErrMalformedAST)
	}
	if !ast[len(ast)-1].Tag.IsBuiltinLeaf() && !ast[len(ast)-1].Tag.IsUserLeaf() {
		return fmt.Errorf("%w: AST must terminate in a leaf", ErrMalformedAST)
	}
	return nil
}

// popClosed closes out every pending container frame the leaf (or
// already-closed sub-AST) just consumed finishes: a non-MAP frame is
// single-child, so it closes as soon as its one inner subtree does, and
// that closure cascades outward through every enclosing non-MAP frame
// in turn. It stops as soon as the top frame is a MAP still waiting on
// its key sub-AST's MAP_SEPARATOR, or the stack empties.
func popClosed(stack []pending) []pending {
	for len(stack) > 0 && stack[len(stack)-1].mapSlotsLeft == 0 {
		stack = stack[:len(stack)-1]
	}
	return stack
}
