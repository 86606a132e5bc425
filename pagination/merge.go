package pagination

// Kind tags a value taking part in a merge.
type Kind int

const (
	// Scalar is any value that is neither a sequence nor a record.
	Scalar Kind = iota
	// Sequence is an ordered list.
	Sequence
	// Record is a key/value object. For merging it behaves like a scalar.
	Record
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Record:
		return "record"
	default:
		return "scalar"
	}
}

// Value is a classified merge operand.
type Value struct {
	Kind Kind
	raw  any
}

// Classify tags v.
func Classify(v any) Value {
	switch v.(type) {
	case []any:
		return Value{Kind: Sequence, raw: v}
	case map[string]any:
		return Value{Kind: Record, raw: v}
	default:
		return Value{Kind: Scalar, raw: v}
	}
}

// Raw returns the untagged value.
func (v Value) Raw() any { return v.raw }

func (v Value) items() []any {
	if v.Kind == Sequence {
		return v.raw.([]any)
	}
	return nil
}

// MergeValues combines the accumulated value with the next page's value.
//
//	acc seq,  next seq  -> acc ++ next
//	acc seq,  next one  -> acc ++ [next]
//	acc one,  next seq  -> [acc] ++ next
//	acc one,  next one  -> [acc, next]
func MergeValues(acc, next Value) Value {
	var out []any
	switch {
	case acc.Kind == Sequence && next.Kind == Sequence:
		out = make([]any, 0, len(acc.items())+len(next.items()))
		out = append(out, acc.items()...)
		out = append(out, next.items()...)
	case acc.Kind == Sequence:
		out = make([]any, 0, len(acc.items())+1)
		out = append(out, acc.items()...)
		out = append(out, next.raw)
	case next.Kind == Sequence:
		out = make([]any, 0, len(next.items())+1)
		out = append(out, acc.raw)
		out = append(out, next.items()...)
	default:
		out = []any{acc.raw, next.raw}
	}
	return Value{Kind: Sequence, raw: out}
}

// Merge folds next into acc key by key and returns a new map. Keys missing
// from acc are copied unchanged; shared keys follow MergeValues. Neither
// input is modified.
func Merge(acc, next map[string]any) map[string]any {
	out := make(map[string]any, len(acc)+len(next))
	for k, v := range acc {
		out[k] = v
	}
	for k, v := range next {
		prev, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		out[k] = MergeValues(Classify(prev), Classify(v)).Raw()
	}
	return out
}
