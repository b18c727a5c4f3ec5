package cache

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	keySeed       uint64 = 17
	keyMultiplier uint64 = 37

	// maxHashDepth bounds the value walk; anything deeper contributes a
	// fixed value, which can only widen a hash into a verified miss.
	maxHashDepth = 16
)

// Key is the composite identity of one query execution: statement id,
// paging bounds, compiled SQL and every bound parameter value fold into
// it in order. Two keys compare equal only if all contributing parts
// are deeply equal; the folded hash and checksum make unequal keys
// cheap to reject.
type Key struct {
	hash     uint64
	checksum uint64
	count    int
	parts    []any
	frozen   bool
}

// NullKey is the frozen marker for statements that cannot be cached.
// Updating it panics with ErrFrozenKey.
var NullKey = &Key{hash: keySeed, frozen: true}

// NewKey returns a key with all given parts folded in.
func NewKey(parts ...any) *Key {
	k := &Key{hash: keySeed}
	k.UpdateAll(parts)
	return k
}

// Update folds one part into the key.
func (k *Key) Update(part any) {
	if k.frozen {
		panic(ErrFrozenKey)
	}
	base := deepHash(part)
	k.count++
	k.checksum += base
	base *= uint64(k.count)
	k.hash = keyMultiplier*k.hash + base
	k.parts = append(k.parts, part)
}

// UpdateAll folds parts into the key in order.
func (k *Key) UpdateAll(parts []any) {
	for _, part := range parts {
		k.Update(part)
	}
}

// Count returns the number of folded parts.
func (k *Key) Count() int {
	return k.count
}

// Hash returns the folded hash. Equal keys share it; unequal keys may
// collide, which is why Equal verifies the parts.
func (k *Key) Hash() uint64 {
	return k.hash
}

// Equal reports whether both keys were built from deeply equal parts.
func (k *Key) Equal(other *Key) bool {
	if k == other {
		return true
	}
	if other == nil {
		return false
	}
	if k.hash != other.hash || k.checksum != other.checksum || k.count != other.count {
		return false
	}
	for i, part := range k.parts {
		if !reflect.DeepEqual(part, other.parts[i]) {
			return false
		}
	}
	return true
}

// Clone returns an unfrozen copy with its own part list.
func (k *Key) Clone() *Key {
	return &Key{
		hash:     k.hash,
		checksum: k.checksum,
		count:    k.count,
		parts:    append([]any(nil), k.parts...),
	}
}

// String renders the key as hash:checksum followed by each part.
func (k *Key) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(k.hash, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(k.checksum, 10))
	for _, part := range k.parts {
		b.WriteByte(':')
		fmt.Fprintf(&b, "%v", part)
	}
	return b.String()
}

// deepHash folds a value of any shape into a uint64. The invariant it
// must keep: values reflect.DeepEqual considers equal hash identically.
func deepHash(v any) uint64 {
	switch t := v.(type) {
	case nil:
		return 1
	case bool:
		if t {
			return 1231
		}
		return 1237
	case int:
		return uint64(int64(t))
	case int8:
		return uint64(int64(t))
	case int16:
		return uint64(int64(t))
	case int32:
		return uint64(int64(t))
	case int64:
		return uint64(t)
	case uint:
		return uint64(t)
	case uint8:
		return uint64(t)
	case uint16:
		return uint64(t)
	case uint32:
		return uint64(t)
	case uint64:
		return t
	case float32:
		return math.Float64bits(float64(t))
	case float64:
		return math.Float64bits(t)
	case string:
		return xxhash.Sum64String(t)
	case []byte:
		return xxhash.Sum64(t)
	case time.Time:
		return uint64(t.UnixNano()) ^ xxhash.Sum64String(t.Location().String())
	}
	return deepValueHash(reflect.ValueOf(v), 0)
}

func deepValueHash(rv reflect.Value, depth int) uint64 {
	if !rv.IsValid() {
		return 1
	}
	if depth > maxHashDepth {
		return 7
	}
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1231
		}
		return 1237
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return math.Float64bits(rv.Float())
	case reflect.Complex64, reflect.Complex128:
		c := rv.Complex()
		return math.Float64bits(real(c)) ^ math.Float64bits(imag(c))
	case reflect.String:
		return xxhash.Sum64String(rv.String())
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return 1
		}
		return deepValueHash(rv.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		h := keySeed + uint64(rv.Len())
		for i := 0; i < rv.Len(); i++ {
			h = 31*h + deepValueHash(rv.Index(i), depth+1)
		}
		return h
	case reflect.Map:
		// Commutative fold, map iteration order is random.
		h := keySeed + uint64(rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			h += 31*deepValueHash(iter.Key(), depth+1) + deepValueHash(iter.Value(), depth+1)
		}
		return h
	case reflect.Struct:
		h := keySeed
		for i := 0; i < rv.NumField(); i++ {
			h = 31*h + deepValueHash(rv.Field(i), depth+1)
		}
		return h
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return uint64(rv.Pointer())
	}
	return 1
}
