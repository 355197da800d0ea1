package object

// Dict is a PDF dictionary. Unlike a plain map it preserves insertion order,
// which the serializer relies on for stable output.
type Dict struct {
	keys []Name
	m    map[Name]Object
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{m: make(map[Name]Object)}
}

// DictOf builds a dictionary from alternating key/value pairs. It panics on
// an odd number of arguments; intended for literals in code and tests.
func DictOf(pairs ...any) *Dict {
	if len(pairs)%2 != 0 {
		panic("object.DictOf: odd number of arguments")
	}
	d := NewDict()
	for i := 0; i < len(pairs); i += 2 {
		d.Set(pairs[i].(Name), pairs[i+1].(Object))
	}
	return d
}

func (*Dict) Kind() Kind { return KindDict }

// Get returns the value stored under key.
func (d *Dict) Get(key Name) (Object, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Set stores value under key, keeping the key's original position if it
// already exists.
func (d *Dict) Set(key Name, value Object) {
	if d.m == nil {
		d.m = make(map[Name]Object)
	}
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = value
}

// Delete removes key from the dictionary.
func (d *Dict) Delete(key Name) {
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Has reports whether key is present.
func (d *Dict) Has(key Name) bool {
	_, ok := d.m[key]
	return ok
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not mutate it.
func (d *Dict) Keys() []Name { return d.keys }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Name returns the string value of the Name stored under key, or "".
func (d *Dict) Name(key Name) Name {
	if v, ok := d.m[key]; ok {
		if n, ok := v.(Name); ok {
			return n
		}
	}
	return ""
}

// Int64 returns the integer stored under key, or 0.
func (d *Dict) Int64(key Name) int64 {
	if v, ok := d.m[key]; ok {
		if n, ok := v.(Number); ok {
			return n.Int64()
		}
	}
	return 0
}

// Ref returns the reference stored under key.
func (d *Dict) Ref(key Name) (Ref, bool) {
	if v, ok := d.m[key]; ok {
		if r, ok := v.(Ref); ok {
			return r, true
		}
	}
	return Ref{}, false
}

// Clone returns a shallow copy preserving key order.
func (d *Dict) Clone() *Dict {
	out := NewDict()
	for _, k := range d.keys {
		out.Set(k, d.m[k])
	}
	return out
}
