package sres

import (
	"strconv"
	"strings"
)

const (
	// Extension is appended to every derived file name.
	Extension = ".sres"

	// SharedPoolName is the bundle name of the shared key pool under a base.
	SharedPoolName = "pool"

	rootName = "root"
)

// FullName returns the file name of bundle name under base.
//
// An empty base yields name, or "root" when both are empty. A base without
// dots is a directory joined to name with '/'. A dotted base is a package
// path: dots become '/' and a non-empty name is joined with '_'.
func FullName(base, name string) string {
	return fullName(base, name, "")
}

// AuxiliaryName returns the file name of the auxiliary resource serial
// belonging to bundle name under base.
func AuxiliaryName(base, name string, serial uint32) string {
	return fullName(base, name, "$"+strconv.FormatUint(uint64(serial), 10))
}

func fullName(base, name, suffix string) string {
	var b strings.Builder
	switch {
	case base == "":
		if name == "" {
			b.WriteString(rootName)
		} else {
			b.WriteString(name)
		}
	case !strings.Contains(base, "."):
		b.WriteString(base)
		if !strings.HasSuffix(base, "/") {
			b.WriteByte('/')
		}
		b.WriteString(name)
	default:
		b.WriteString(strings.ReplaceAll(base, ".", "/"))
		if name != "" {
			b.WriteByte('_')
			b.WriteString(name)
		}
	}
	b.WriteString(suffix)
	b.WriteString(Extension)
	return b.String()
}
