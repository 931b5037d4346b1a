package api

// Property is one resolved key/value pair.
type Property struct {
	Key   string
	Value string
}

// Properties is an insertion-ordered string mapping. Setting an existing
// key keeps its position.
type Properties []Property

// Get returns the value stored under key.
func (p Properties) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in order.
func (p Properties) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// Set stores value under key.
func (p *Properties) Set(key, value string) {
	for i, kv := range *p {
		if kv.Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Property{Key: key, Value: value})
}

// Delete removes key and returns the value it held.
func (p *Properties) Delete(key string) (string, bool) {
	for i, kv := range *p {
		if kv.Key == key {
			*p = append((*p)[:i], (*p)[i+1:]...)
			return kv.Value, true
		}
	}
	return "", false
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	copy(out, p)
	return out
}

// Map returns the properties as a plain map.
func (p Properties) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}
