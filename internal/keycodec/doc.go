// Package keycodec serializes composite keys to single wire strings.
//
// A serializer is configured with two strategies.
//
// The naming strategy turns each part's type descriptor into text:
//
//	DescriptorNaming   "Pair, example.com/m<int, builtin|string, builtin>"
//	QualifiedNaming    "example.com/m.Pair[int,string]"
//	LookupTableNaming  "pair"   (alias from a table)
//
// The encoding strategy joins the named parts:
//
//	Segmented  base64(type) ":" base64(value), parts joined by ","
//	Plain      type "{:}" escaped(value), parts joined by "{+}"
//
// Plain escapes values by doubling every ':' and '+'. Any run of those
// characters inside an escaped value therefore has even length, while the
// separator tokens contain a single one, so a left-to-right search for
// "{+}" and then "{:}" splits the wire string without backtracking.
//
// Segmented is the canonical form used by the storage layer; Plain is
// for logs and operators.
package keycodec
