// Package sres decodes the compact, self-describing "sres" resource-bundle
// format: hierarchical, typed, locale-style data stored for fast, partial and
// memory-frugal loading.
//
// A bundle file is a flags header, optional key and string pools, and one
// recursively encoded resource. Tables reference their keys and strings by
// position in the pools; keys can also come from a shared key pool stored
// once per base location ("pool.sres") and cached in a [PoolCache].
//
// Large sub-resources may be stored in auxiliary files ("name$N.sres"). They
// decode to an [*Auxiliary] handle that loads the file on first access and keeps
// the result behind a reclaimable reference.
//
// # Quick Start
//
//	r := sres.NewReader(loader.New(os.DirFS("data")))
//	root, ok, err := r.LoadTable("com.example.bundles", "de_CH")
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    // no such bundle
//	}
//	name, err := root.GetString("displayName")
//
// Files are opened through a [Loader]. Package loader provides one for fs.FS
// trees and directories with transparent decompression; package http adds an
// fs.FS over HTTP. Package encode writes bundles.
package sres
