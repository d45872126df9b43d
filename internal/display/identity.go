package display

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Identity identifies a physical display by connector, vendor, product and
// serial. Trailing empty components are treated as absent, so an identity
// saved with only a connector still matches the fully populated live one.
type Identity struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

func (id Identity) parts() [4]string {
	return [4]string{id.Connector, id.Vendor, id.Product, id.Serial}
}

// Arity returns the number of components up to and including the last
// non-empty one.
func (id Identity) Arity() int {
	p := id.parts()
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] != "" {
			return i + 1
		}
	}
	return 0
}

// Matches reports prefix equality: every component present in the shorter
// identity equals the corresponding component of the other one.
func (id Identity) Matches(other Identity) bool {
	n := min(id.Arity(), other.Arity())
	if n == 0 {
		return false
	}
	a, b := id.parts(), other.parts()
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (id Identity) String() string {
	p := id.parts()
	return strings.Join(p[:max(id.Arity(), 1)], "/")
}

// MarshalJSON encodes the identity as a four element string array.
func (id Identity) MarshalJSON() ([]byte, error) {
	p := id.parts()
	return json.Marshal(p[:])
}

// UnmarshalJSON accepts one to four components so entries written by older
// schema revisions still decode.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("identity must be a string array: %w", err)
	}
	if len(parts) == 0 || len(parts) > 4 {
		return fmt.Errorf("identity must have 1 to 4 components, got %d", len(parts))
	}
	var p [4]string
	copy(p[:], parts)
	*id = Identity{Connector: p[0], Vendor: p[1], Product: p[2], Serial: p[3]}
	return nil
}

func compareIdentity(a, b Identity) int {
	pa, pb := a.parts(), b.parts()
	for i := range pa {
		if c := strings.Compare(pa[i], pb[i]); c != 0 {
			return c
		}
	}
	return 0
}
