package invoice

// Value is one entry of a raw field map. It is either a Scalar (any JSON
// value other than the line item list, including null) or a LineItemList.
type Value interface {
	isValue()
}

// Scalar holds a single JSON-decoded value. A nil V means JSON null.
type Scalar struct {
	V any
}

// LineItemList is the ordered, unvalidated list of line items.
type LineItemList []RawLineItem

// RawLineItem is the unvalidated key/value map of one line item. A nil map
// marks an entry that was not a JSON object.
type RawLineItem map[string]any

func (Scalar) isValue()       {}
func (LineItemList) isValue() {}

// Raw is the field map produced by extraction and consumed by validation.
type Raw map[string]Value

// Null is shorthand for a JSON null scalar.
var Null = Scalar{}

// FromMap converts a JSON-decoded object into a Raw map. The input is not
// modified. A null line_items value becomes an empty list; any other
// non-array value is kept as a Scalar so validation can report it.
func FromMap(m map[string]any) Raw {
	raw := make(Raw, len(m))
	for k, v := range m {
		if k != string(FieldLineItems) {
			raw[k] = Scalar{V: v}
			continue
		}

		switch items := v.(type) {
		case nil:
			raw[k] = LineItemList{}
		case []any:
			list := make(LineItemList, 0, len(items))
			for _, item := range items {
				obj, ok := item.(map[string]any)
				if !ok {
					list = append(list, nil)
					continue
				}
				cp := make(RawLineItem, len(obj))
				for ik, iv := range obj {
					cp[ik] = iv
				}
				list = append(list, cp)
			}
			raw[k] = list
		default:
			raw[k] = Scalar{V: v}
		}
	}
	return raw
}

// Empty returns the fallback structure: every field null and no line items.
func Empty() Raw {
	raw := make(Raw, len(Fields))
	for _, f := range Fields {
		raw[string(f)] = Null
	}
	raw[string(FieldLineItems)] = LineItemList{}
	return raw
}

// WithDefaults returns a copy of r in which every known field is present.
// Missing fields become null and a missing line item list becomes empty.
func (r Raw) WithDefaults() Raw {
	out := Empty()
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the scalar value stored under f, or nil when absent.
func (r Raw) Get(f Field) any {
	if s, ok := r[string(f)].(Scalar); ok {
		return s.V
	}
	return nil
}

// Has reports whether the key for f is present, even when its value is null.
func (r Raw) Has(f Field) bool {
	_, ok := r[string(f)]
	return ok
}

// LineItems returns the line item list, or nil when absent or malformed.
func (r Raw) LineItems() LineItemList {
	list, _ := r[string(FieldLineItems)].(LineItemList)
	return list
}

// Map converts r back into a plain JSON-encodable map.
func (r Raw) Map() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch val := v.(type) {
		case Scalar:
			out[k] = val.V
		case LineItemList:
			out[k] = val.Values()
		}
	}
	return out
}

// Values converts l into a JSON-encodable slice.
func (l LineItemList) Values() []any {
	items := make([]any, 0, len(l))
	for _, item := range l {
		if item == nil {
			items = append(items, nil)
			continue
		}
		items = append(items, map[string]any(item))
	}
	return items
}
