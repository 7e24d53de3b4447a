// Package wire implements the primitive codec of the sres format: variable-width
// and fixed-width integers, length-prefixed byte runs, string pool sections and
// the two text encodings used by string pools.
//
// Layout of a resource file:
//
//	header        4 bytes, big-endian flags word
//	[key pool]    SectionKeyPool, varuint count, count × (varuint len, UTF-8 bytes)
//	[utf-8 pool]  SectionStringsUTF8, same layout as the key pool
//	[utf-16 pool] SectionStringsUTF16, count × (varuint len, UTF-16BE bytes)
//	resource      SectionResourceData, one tagged resource
//
// A shared key pool file holds only a key pool section.
package wire
