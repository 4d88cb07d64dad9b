package domain

import "sort"

// ArgumentValues maps argument names to collected values.
// An absent or empty value means the argument is unset.
type ArgumentValues map[string]string

// IsSet reports whether name holds a non-empty value.
func (v ArgumentValues) IsSet(name string) bool {
	return v[name] != ""
}

// Clone returns an independent copy. A nil receiver yields an empty map.
func (v ArgumentValues) Clone() ArgumentValues {
	out := make(ArgumentValues, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Keys returns the names in lexical order.
func (v ArgumentValues) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Missing lists the required arguments of args that are unset in v, in declared order.
func (v ArgumentValues) Missing(args []Argument) []string {
	var missing []string
	for _, arg := range args {
		if arg.Required && !v.IsSet(arg.Name) {
			missing = append(missing, arg.Name)
		}
	}
	return missing
}
