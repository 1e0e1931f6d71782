package wit

// Field is one named member of a record type. Declaration order is
// significant: it is the wire order, with no separate length prefix.
type Field struct {
	Name string
	Type Type
}

// Case is one arm of a variant type. A nil Type means the case carries no
// payload. Declaration order assigns the discriminant: the i-th declared
// case always encodes/decodes as discriminant i (spec.md invariant).
type Case struct {
	Name string
	Type *Type
}

// ResourceKind distinguishes the handful of resource-type identities this
// bridge understands by name, rather than by host-runtime reflection.
type ResourceKind uint8

const (
	// ResourceHostInputStream is the host's async byte-source resource type.
	ResourceHostInputStream ResourceKind = iota
	// ResourceRemote denotes an opaque handle minted by a remote peer.
	ResourceRemote
	// ResourceGuestExported denotes a resource type exported by the guest
	// component whose instances are shared via the 128-bit identifier table.
	ResourceGuestExported
	// ResourceHost denotes any other host-only resource; encoding one is a
	// hard error (spec.md §4.1 case 5).
	ResourceHost
)

// Resource identifies the resource type referenced by an own<R>/borrow<R>
// type. Name is the resource's declared name within its interface; it is set
// for ResourceGuestExported and, by the polyfill linker, for ResourceRemote.
type Resource struct {
	Kind ResourceKind
	Name string
}

// Type is a tree describing the shape of a value, per spec.md §3. Only the
// fields relevant to Kind are populated; callers must not read fields that
// don't belong to the current Kind.
type Type struct {
	Kind Kind

	// List, Option
	Elem *Type

	// Record
	Fields []Field

	// Tuple
	Elems []Type

	// Variant
	Cases []Case

	// Enum, Flags: declared names in order. Discriminant/bit position i
	// corresponds to Names[i].
	Names []string

	// Result: nil side means that arm carries no payload.
	Ok  *Type
	Err *Type

	// Own, Borrow
	Res Resource
}

// Bool, S8 .. U64, Float32/64, Char, String construct primitive types.
func Bool() Type       { return Type{Kind: KindBool} }
func S8() Type         { return Type{Kind: KindS8} }
func U8() Type         { return Type{Kind: KindU8} }
func S16() Type        { return Type{Kind: KindS16} }
func U16() Type        { return Type{Kind: KindU16} }
func S32() Type        { return Type{Kind: KindS32} }
func U32() Type        { return Type{Kind: KindU32} }
func S64() Type        { return Type{Kind: KindS64} }
func U64() Type        { return Type{Kind: KindU64} }
func Float32Type() Type { return Type{Kind: KindFloat32} }
func Float64Type() Type { return Type{Kind: KindFloat64} }
func Char() Type       { return Type{Kind: KindChar} }
func String() Type     { return Type{Kind: KindString} }

// List constructs a list<elem> type.
func List(elem Type) Type {
	e := elem
	return Type{Kind: KindList, Elem: &e}
}

// Option constructs an option<elem> type.
func Option(elem Type) Type {
	e := elem
	return Type{Kind: KindOption, Elem: &e}
}

// Record constructs a record type with the given fields in declared order.
func Record(fields ...Field) Type {
	return Type{Kind: KindRecord, Fields: fields}
}

// Tuple constructs a tuple type with the given element types in order.
func Tuple(elems ...Type) Type {
	return Type{Kind: KindTuple, Elems: elems}
}

// Variant constructs a variant type with the given cases in declared order.
func Variant(cases ...Case) Type {
	return Type{Kind: KindVariant, Cases: cases}
}

// Enum constructs an enum type with the given case names in declared order.
func Enum(names ...string) Type {
	return Type{Kind: KindEnum, Names: names}
}

// Result constructs a result<ok?, err?> type. Pass nil for a side that
// carries no payload.
func Result(ok, err *Type) Type {
	return Type{Kind: KindResult, Ok: ok, Err: err}
}

// Flags constructs a flags type with the given declared names in order.
func Flags(names ...string) Type {
	return Type{Kind: KindFlags, Names: names}
}

// Own constructs an own<R> type for the given resource identity.
func Own(r Resource) Type {
	return Type{Kind: KindOwn, Res: r}
}

// Borrow constructs a borrow<R> type for the given resource identity.
func Borrow(r Resource) Type {
	return Type{Kind: KindBorrow, Res: r}
}

// CasePayload wraps t as a non-nil case payload type for use in Variant.
func CasePayload(t Type) *Type {
	return &t
}
