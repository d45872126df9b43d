package display

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the type tag of a property value, named after its D-Bus signature.
type Kind byte

const (
	KindBool   Kind = 'b'
	KindUint32 Kind = 'u'
)

// Value is a typed property value.
type Value struct {
	kind Kind
	b    bool
	u    uint32
}

func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func Uint32(v uint32) Value { return Value{kind: KindUint32, u: v} }

func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload and whether v holds a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsUint32 returns the uint32 payload and whether v holds a uint32.
func (v Value) AsUint32() (uint32, bool) { return v.u, v.kind == KindUint32 }

// Interface returns the payload as a plain Go value for transport adapters.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindUint32:
		return v.u
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindUint32:
		return "u:" + strconv.FormatUint(uint64(v.u), 10)
	default:
		return "?"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(map[string]bool{"b": v.b})
	case KindUint32:
		return json.Marshal(map[string]uint32{"u": v.u})
	default:
		return nil, fmt.Errorf("cannot encode untyped property value")
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("property value must be an object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("property value must have exactly one type tag")
	}
	for tag, payload := range raw {
		switch tag {
		case "b":
			var b bool
			if err := json.Unmarshal(payload, &b); err != nil {
				return fmt.Errorf("property value b: %w", err)
			}
			*v = Bool(b)
		case "u":
			var u uint32
			if err := json.Unmarshal(payload, &u); err != nil {
				return fmt.Errorf("property value u: %w", err)
			}
			*v = Uint32(u)
		default:
			return fmt.Errorf("unknown property type tag %q", tag)
		}
	}
	return nil
}

// Properties is a set of whitelisted, typed properties.
type Properties map[string]Value

const (
	PropUnderscanning = "underscanning"
	PropLayoutMode    = "layout-mode"
)

// Layout modes reported by Mutter in the layout-mode property.
const (
	LayoutModeLogical  uint32 = 1
	LayoutModePhysical uint32 = 2
)

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of p, or nil when p is empty.
func (p Properties) Clone() Properties {
	if len(p) == 0 {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Properties) canonical() string {
	var b strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p[k].String())
	}
	return b.String()
}

// monitorProperties keeps the per-monitor whitelist. Underscanning is only
// recorded when the compositor reports it switched on.
func monitorProperties(raw map[string]any) Properties {
	out := Properties{}
	for _, key := range []string{"is-underscanning", PropUnderscanning} {
		if b, ok := raw[key].(bool); ok && b {
			out[PropUnderscanning] = Bool(true)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func globalProperties(raw map[string]any) Properties {
	out := Properties{}
	if u, ok := toUint32(raw[PropLayoutMode]); ok {
		out[PropLayoutMode] = Uint32(u)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case Value:
		return n.AsUint32()
	default:
		return 0, false
	}
}
