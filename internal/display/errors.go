package display

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIdentity is matched by every error caused by inconsistent display
// identity data: ambiguous current modes, duplicate outputs, or a layout that
// cannot be mapped onto the live displays.
var ErrIdentity = errors.New("display identity error")

// IdentityError reports live state that cannot be canonicalized.
type IdentityError struct {
	Identity Identity
	Reason   string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("output %s: %s", e.Identity, e.Reason)
}

func (e *IdentityError) Is(target error) bool { return target == ErrIdentity }

// RetargetError reports a logical monitor left without any output after
// retargeting.
type RetargetError struct {
	Index   int
	Missing []Identity
}

func (e *RetargetError) Error() string {
	names := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		names[i] = id.String()
	}
	return fmt.Sprintf("logical monitor %d has no connected output (missing %s)", e.Index, strings.Join(names, ", "))
}

func (e *RetargetError) Is(target error) bool { return target == ErrIdentity }
