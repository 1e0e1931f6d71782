package wit

// RecordField is one (name, value) pair inside a Record value, in the same
// declared order as the paired record Type's Fields.
type RecordField struct {
	Name string
	Val  Val
}

// ResourceHandle is the minimal contract codec needs from a resource value:
// enough to tell which of the distinguished resource identities it carries.
// Concrete handles (owned by the hostvm package) implement this so that wit
// stays free of any host-runtime dependency.
type ResourceHandle interface {
	ResourceKind() ResourceKind
}

// Val is a tagged union mirroring Type: exactly one group of fields below is
// meaningful, selected by Kind. This is a closed, flat representation on
// purpose (Design Notes §9) rather than an interface hierarchy — the shape
// set is finite and adding one means adding a Kind plus codec support, not a
// new type satisfying some common interface.
type Val struct {
	Kind Kind

	B bool
	I8  int8
	U8  uint8
	I16 int16
	U16 uint16
	I32 int32
	U32 uint32
	I64 int64
	U64 uint64
	F32 float32
	F64 float64
	Ch  rune
	Str string

	List []Val

	Record []RecordField

	Tuple []Val

	// Variant, Enum
	Case    string
	Payload *Val // Variant payload; nil if this case carries none. Unused for Enum.

	// Option: nil means none.
	Some *Val

	// Result: IsErr selects the arm; ResultOf nil means that arm carries none.
	IsErr    bool
	ResultOf *Val

	// Flags: an unordered set of active flag names.
	Set map[string]struct{}

	// Own, Borrow
	Handle ResourceHandle
}

func BoolVal(v bool) Val       { return Val{Kind: KindBool, B: v} }
func S8Val(v int8) Val         { return Val{Kind: KindS8, I8: v} }
func U8Val(v uint8) Val        { return Val{Kind: KindU8, U8: v} }
func S16Val(v int16) Val       { return Val{Kind: KindS16, I16: v} }
func U16Val(v uint16) Val      { return Val{Kind: KindU16, U16: v} }
func S32Val(v int32) Val       { return Val{Kind: KindS32, I32: v} }
func U32Val(v uint32) Val      { return Val{Kind: KindU32, U32: v} }
func S64Val(v int64) Val       { return Val{Kind: KindS64, I64: v} }
func U64Val(v uint64) Val      { return Val{Kind: KindU64, U64: v} }
func Float32Val(v float32) Val { return Val{Kind: KindFloat32, F32: v} }
func Float64Val(v float64) Val { return Val{Kind: KindFloat64, F64: v} }
func CharVal(v rune) Val       { return Val{Kind: KindChar, Ch: v} }
func StringVal(v string) Val   { return Val{Kind: KindString, Str: v} }

// ListVal constructs a List value from its elements.
func ListVal(elems ...Val) Val {
	return Val{Kind: KindList, List: elems}
}

// RecordVal constructs a Record value from its ordered fields.
func RecordVal(fields ...RecordField) Val {
	return Val{Kind: KindRecord, Record: fields}
}

// TupleVal constructs a Tuple value from its ordered elements.
func TupleVal(elems ...Val) Val {
	return Val{Kind: KindTuple, Tuple: elems}
}

// VariantVal constructs a Variant value selecting case with an optional payload.
func VariantVal(c string, payload *Val) Val {
	return Val{Kind: KindVariant, Case: c, Payload: payload}
}

// EnumVal constructs an Enum value selecting case c.
func EnumVal(c string) Val {
	return Val{Kind: KindEnum, Case: c}
}

// NoneVal constructs an Option value with no payload.
func NoneVal() Val {
	return Val{Kind: KindOption}
}

// SomeVal constructs an Option value carrying v.
func SomeVal(v Val) Val {
	return Val{Kind: KindOption, Some: &v}
}

// OkVal constructs a Result value selecting the ok arm, optionally carrying v.
func OkVal(v *Val) Val {
	return Val{Kind: KindResult, IsErr: false, ResultOf: v}
}

// ErrVal constructs a Result value selecting the err arm, optionally carrying v.
func ErrVal(v *Val) Val {
	return Val{Kind: KindResult, IsErr: true, ResultOf: v}
}

// FlagsVal constructs a Flags value from the given active flag names.
func FlagsVal(names ...string) Val {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Val{Kind: KindFlags, Set: set}
}

// OwnVal constructs an Own value wrapping a resource handle.
func OwnVal(h ResourceHandle) Val {
	return Val{Kind: KindOwn, Handle: h}
}

// BorrowVal constructs a Borrow value wrapping a resource handle.
func BorrowVal(h ResourceHandle) Val {
	return Val{Kind: KindBorrow, Handle: h}
}
