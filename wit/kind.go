// Package wit defines the type descriptor and dynamically typed value
// representation exchanged across the bridge: a closed tagged union mirrored
// between Type (the schema) and Val (the data), one discriminant per shape.
package wit

// Kind is the discriminant shared by Type and Val. Extending the shape set
// requires adding a Kind and wiring it through codec, not a new interface.
type Kind uint8

const (
	KindBool Kind = iota
	KindS8
	KindU8
	KindS16
	KindU16
	KindS32
	KindU32
	KindS64
	KindU64
	KindFloat32
	KindFloat64
	KindChar
	KindString
	KindList
	KindRecord
	KindTuple
	KindVariant
	KindEnum
	KindOption
	KindResult
	KindFlags
	KindOwn
	KindBorrow
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindS8:
		return "s8"
	case KindU8:
		return "u8"
	case KindS16:
		return "s16"
	case KindU16:
		return "u16"
	case KindS32:
		return "s32"
	case KindU32:
		return "u32"
	case KindS64:
		return "s64"
	case KindU64:
		return "u64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindTuple:
		return "tuple"
	case KindVariant:
		return "variant"
	case KindEnum:
		return "enum"
	case KindOption:
		return "option"
	case KindResult:
		return "result"
	case KindFlags:
		return "flags"
	case KindOwn:
		return "own"
	case KindBorrow:
		return "borrow"
	default:
		return "unknown"
	}
}
