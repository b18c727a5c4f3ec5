package types

import (
	"database/sql"
	"errors"
	"reflect"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/satishbabariya/sqlmapper-go/internal/debug"
)

// HandlerFactory builds a handler instance for a host type. Factories
// registered by name back the typeHandler placeholder attribute.
type HandlerFactory func(host reflect.Type) (TypeHandler, error)

// dbTypeMap is the immutable per-host-type view of registered handlers.
// Replaced wholesale on registration, read lock-free on resolution.
type dbTypeMap struct {
	handlers map[DBType]TypeHandler
	sole     TypeHandler
}

// noHandlers marks host types that resolved to nothing, so the miss
// walk runs only once per type.
var noHandlers = &dbTypeMap{}

func newDBTypeMap(handlers map[DBType]TypeHandler) *dbTypeMap {
	return &dbTypeMap{handlers: handlers, sole: pickSole(handlers)}
}

// pickSole returns the single handler all wire types share, comparing
// by handler type so differently parametrized instances still count as
// one handler.
func pickSole(handlers map[DBType]TypeHandler) TypeHandler {
	var sole TypeHandler
	var soleType reflect.Type
	for _, h := range handlers {
		ht := reflect.TypeOf(h)
		if sole == nil {
			sole, soleType = h, ht
		} else if ht != soleType {
			return nil
		}
	}
	return sole
}

// Registry resolves the codec for a (host type, wire type) pair. Every
// engine owns its own instance; there is no process-global registry.
//
// Resolution is lock-free on the hot path. Host types that were never
// registered are resolved once through a miss walk: pointer types use
// their element's handlers, named types that implement a registered
// interface receive a specialized copy of that interface's handlers,
// and named scalars fall back to the entry of their underlying builtin.
// The outcome, including a definitive miss, is cached.
type Registry struct {
	mu       sync.RWMutex
	byType   *xsync.MapOf[reflect.Type, *dbTypeMap]
	decoders *xsync.MapOf[DBType, TypeHandler]
	ifaces   []reflect.Type
	named    map[string]HandlerFactory
}

// NewRegistry returns a registry preloaded with handlers for the Go
// builtins, time.Time, byte slices, JSON payloads, the sql.Null wrapper
// types and the database/sql scanner and valuer contracts.
func NewRegistry() *Registry {
	r := &Registry{
		byType:   xsync.NewMapOf[reflect.Type, *dbTypeMap](),
		decoders: xsync.NewMapOf[DBType, TypeHandler](),
		named:    map[string]HandlerFactory{},
	}
	r.registerDefaults()
	return r
}

// Register binds a handler for the (host, db) pair, replacing any
// previous registration for that exact pair.
func (r *Registry) Register(host reflect.Type, db DBType, h TypeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeHandler(host, db, h)
}

// RegisterType binds a handler for a host type regardless of the wire
// type it is used with.
func (r *Registry) RegisterType(host reflect.Type, h TypeHandler) {
	r.Register(host, Unspecified, h)
}

// RegisterInterface binds a handler to an interface type. Host types
// that implement the interface inherit a copy of its handlers during
// the miss walk, specialized through TypeAware when the handler
// supports it. Interfaces are consulted in registration order.
func (r *Registry) RegisterInterface(iface reflect.Type, db DBType, h TypeHandler) error {
	if iface == nil || iface.Kind() != reflect.Interface {
		return &CodecError{Codec: "registry", Host: iface, Op: "register", Err: errors.New("not an interface type")}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeHandler(iface, db, h)
	for _, existing := range r.ifaces {
		if existing == iface {
			return nil
		}
	}
	r.ifaces = append(r.ifaces, iface)
	return nil
}

// RegisterNamed binds a handler factory under a name, making it
// addressable from the typeHandler placeholder attribute.
func (r *Registry) RegisterNamed(name string, factory HandlerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = factory
}

// BuildNamed constructs a handler from a named factory for the given
// host type. The host may be nil when the placeholder's type could not
// be determined.
func (r *Registry) BuildNamed(name string, host reflect.Type) (TypeHandler, error) {
	r.mu.RLock()
	factory, ok := r.named[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &CodecError{Codec: name, Host: host, Op: "build", Err: errors.New("no such handler")}
	}
	h, err := factory(host)
	if err != nil {
		var ce *CodecError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &CodecError{Codec: name, Host: host, Op: "build", Err: err}
	}
	return h, nil
}

// RegisterDecoder binds the handler used to convert result columns the
// driver reports with the given wire type.
func (r *Registry) RegisterDecoder(db DBType, h TypeHandler) {
	r.decoders.Store(db, h)
}

// Decoder returns the column decoder for a wire type, if one is
// registered.
func (r *Registry) Decoder(db DBType) (TypeHandler, bool) {
	return r.decoders.Load(db)
}

// Handler resolves the codec for a host type and wire type. The exact
// wire type wins, then the unspecified slot, then the sole handler the
// host type has if all its registrations share one. A nil result means
// the pair is unhandled.
func (r *Registry) Handler(host reflect.Type, db DBType) TypeHandler {
	if host == nil {
		return nil
	}
	dm := r.typeMap(host)
	if dm == nil || len(dm.handlers) == 0 {
		return nil
	}
	if h, ok := dm.handlers[db]; ok {
		return h
	}
	if h, ok := dm.handlers[Unspecified]; ok {
		return h
	}
	return dm.sole
}

// HasHandler reports whether the host type resolves to any codec.
func (r *Registry) HasHandler(host reflect.Type) bool {
	return r.Handler(host, Unspecified) != nil
}

func (r *Registry) storeHandler(host reflect.Type, db DBType, h TypeHandler) {
	handlers := map[DBType]TypeHandler{}
	if dm, ok := r.byType.Load(host); ok {
		for k, v := range dm.handlers {
			handlers[k] = v
		}
	}
	handlers[db] = h
	r.byType.Store(host, newDBTypeMap(handlers))
}

func (r *Registry) typeMap(host reflect.Type) *dbTypeMap {
	if dm, ok := r.byType.Load(host); ok {
		return dm
	}
	dm := r.resolveMiss(host)
	actual, _ := r.byType.LoadOrStore(host, dm)
	return actual
}

func (r *Registry) resolveMiss(host reflect.Type) *dbTypeMap {
	if host.Kind() == reflect.Ptr {
		return r.typeMap(host.Elem())
	}
	if host.PkgPath() != "" {
		if dm := r.interfaceMap(host); dm != nil {
			return dm
		}
		if bt := builtinFor(host); bt != nil && bt != host {
			if dm, ok := r.byType.Load(bt); ok && dm != noHandlers {
				return dm
			}
		}
	}
	return noHandlers
}

// interfaceMap derives a handler map for a host type from the first
// registered interface it implements. TypeAware handlers are copied as
// instances specialized for the host; a failed specialization keeps the
// shared handler.
func (r *Registry) interfaceMap(host reflect.Type) *dbTypeMap {
	r.mu.RLock()
	ifaces := r.ifaces
	r.mu.RUnlock()

	for _, iface := range ifaces {
		if !host.Implements(iface) {
			continue
		}
		src, ok := r.byType.Load(iface)
		if !ok || len(src.handlers) == 0 {
			continue
		}
		handlers := make(map[DBType]TypeHandler, len(src.handlers))
		for db, h := range src.handlers {
			aware, ok := h.(TypeAware)
			if !ok {
				handlers[db] = h
				continue
			}
			specialized, err := aware.WithType(host)
			if err != nil {
				debug.Warn("keeping shared handler", "host", host.String(), "error", err)
				handlers[db] = h
				continue
			}
			handlers[db] = specialized
		}
		return newDBTypeMap(handlers)
	}
	return nil
}

// DynamicHandler is the codec for parameters whose host type is only
// known at runtime. Each value is resolved through its registry by
// dynamic type at bind time; values no codec claims bind permissively.
type DynamicHandler struct {
	Registry *Registry
}

func (h DynamicHandler) Bind(b Binder, index int, value any, dbType DBType) error {
	v, isNil := unwrap(value)
	if !isNil && h.Registry != nil {
		if resolved := h.Registry.Handler(reflect.TypeOf(v), dbType); resolved != nil {
			if _, self := resolved.(DynamicHandler); !self {
				return resolved.Bind(b, index, v, dbType)
			}
		}
	}
	return AnyHandler{}.Bind(b, index, v, dbType)
}

func (h DynamicHandler) Decode(src any) (any, error) {
	return AnyHandler{}.Decode(src)
}

var (
	boolType    = reflect.TypeOf(false)
	intType     = reflect.TypeOf(int(0))
	int8Type    = reflect.TypeOf(int8(0))
	int16Type   = reflect.TypeOf(int16(0))
	int32Type   = reflect.TypeOf(int32(0))
	int64Type   = reflect.TypeOf(int64(0))
	uintType    = reflect.TypeOf(uint(0))
	uint8Type   = reflect.TypeOf(uint8(0))
	uint16Type  = reflect.TypeOf(uint16(0))
	uint32Type  = reflect.TypeOf(uint32(0))
	uint64Type  = reflect.TypeOf(uint64(0))
	float32Type = reflect.TypeOf(float32(0))
	float64Type = reflect.TypeOf(float64(0))
	stringType  = reflect.TypeOf("")
)

// builtinFor maps a named type's kind onto the builtin type whose
// handlers it can reuse.
func builtinFor(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Bool:
		return boolType
	case reflect.Int:
		return intType
	case reflect.Int8:
		return int8Type
	case reflect.Int16:
		return int16Type
	case reflect.Int32:
		return int32Type
	case reflect.Int64:
		return int64Type
	case reflect.Uint:
		return uintType
	case reflect.Uint8:
		return uint8Type
	case reflect.Uint16:
		return uint16Type
	case reflect.Uint32:
		return uint32Type
	case reflect.Uint64:
		return uint64Type
	case reflect.Float32:
		return float32Type
	case reflect.Float64:
		return float64Type
	case reflect.String:
		return stringType
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && t.Elem().PkgPath() == "" {
			return bytesType
		}
	}
	return nil
}

func (r *Registry) registerDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()

	register := func(host reflect.Type, h TypeHandler, dbs ...DBType) {
		r.storeHandler(host, Unspecified, h)
		for _, db := range dbs {
			r.storeHandler(host, db, h)
		}
	}

	register(boolType, BoolHandler{}, Boolean, Bit)
	register(intType, IntHandler{Target: intType}, Integer)
	register(int8Type, IntHandler{Target: int8Type}, TinyInt)
	register(int16Type, IntHandler{Target: int16Type}, SmallInt)
	register(int32Type, IntHandler{Target: int32Type}, Integer)
	register(int64Type, IntHandler{Target: int64Type}, BigInt)
	register(uintType, IntHandler{Target: uintType})
	register(uint8Type, IntHandler{Target: uint8Type})
	register(uint16Type, IntHandler{Target: uint16Type})
	register(uint32Type, IntHandler{Target: uint32Type})
	register(uint64Type, IntHandler{Target: uint64Type})
	register(float32Type, FloatHandler{Target: float32Type}, Real, Float)
	register(float64Type, FloatHandler{Target: float64Type}, Double, Numeric, Decimal)
	register(stringType, StringHandler{}, VarChar, Char, LongVarChar, NVarChar, NChar, Clob)
	register(bytesType, BytesHandler{}, Blob, Binary, VarBinary, LongVarBinary)
	register(timeType, TimeHandler{}, Timestamp, Date, Time)
	register(rawMessageType, JSONHandler{}, JSON)
	register(anyType, DynamicHandler{Registry: r}, Other)

	for _, t := range []any{
		sql.NullBool{}, sql.NullByte{}, sql.NullInt16{}, sql.NullInt32{},
		sql.NullInt64{}, sql.NullFloat64{}, sql.NullString{}, sql.NullTime{},
	} {
		ht := reflect.TypeOf(t)
		register(ht, ValuerHandler{Target: ht})
	}

	r.storeHandler(valuerType, Unspecified, ValuerHandler{})
	r.ifaces = append(r.ifaces, valuerType)
	r.storeHandler(textMarshalerType, Unspecified, TextHandler{})
	r.ifaces = append(r.ifaces, textMarshalerType)

	// Integer and float columns decode to int64 and float64 even when
	// the driver reports them as text, the mysql text protocol does.
	r.decoders.Store(TinyInt, IntHandler{})
	r.decoders.Store(SmallInt, IntHandler{})
	r.decoders.Store(Integer, IntHandler{})
	r.decoders.Store(BigInt, IntHandler{})
	r.decoders.Store(Float, FloatHandler{})
	r.decoders.Store(Real, FloatHandler{})
	r.decoders.Store(Double, FloatHandler{})
	r.decoders.Store(Numeric, FloatHandler{})
	r.decoders.Store(Decimal, FloatHandler{})
	r.decoders.Store(Timestamp, TimeHandler{})
	r.decoders.Store(Date, TimeHandler{})
	r.decoders.Store(Time, TimeHandler{})
	r.decoders.Store(Boolean, BoolHandler{})
	r.decoders.Store(Blob, BytesHandler{})
	r.decoders.Store(Binary, BytesHandler{})
	r.decoders.Store(VarBinary, BytesHandler{})
	r.decoders.Store(LongVarBinary, BytesHandler{})
	r.decoders.Store(JSON, JSONHandler{})

	named := func(name string, base TypeHandler) {
		r.named[name] = func(host reflect.Type) (TypeHandler, error) {
			if host == nil {
				return base, nil
			}
			if aware, ok := base.(TypeAware); ok {
				return aware.WithType(host)
			}
			return base, nil
		}
	}
	named("bool", BoolHandler{})
	named("int", IntHandler{})
	named("float", FloatHandler{})
	named("string", StringHandler{})
	named("bytes", BytesHandler{})
	named("time", TimeHandler{})
	named("json", JSONHandler{})
	named("text", TextHandler{})
	named("valuer", ValuerHandler{})
	r.named["any"] = func(reflect.Type) (TypeHandler, error) {
		return AnyHandler{}, nil
	}
}
