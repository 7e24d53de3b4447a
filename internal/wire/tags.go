package wire

// FlagSharedKeys is set in the header when table keys index into the shared
// key pool of the bundle's base location.
const FlagSharedKeys uint32 = 1 << 0

// Section tags.
const (
	SectionKeyPool      byte = 'K'
	SectionStringsUTF8  byte = 'S'
	SectionStringsUTF16 byte = 'U'
	SectionResourceData byte = 'R'
)

// Resource type tags.
const (
	TagString byte = iota + 1
	TagInt16
	TagInt32
	TagByteArray
	TagInt16Array
	TagInt32Array
	TagStringArray
	TagObjectArray
	TagTable
	TagAlias
	TagAuxiliary
)

// MaxVaruintLen is the maximum encoded length of a varuint.
const MaxVaruintLen = 5
