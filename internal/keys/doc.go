// Package keys implements typed composite keys.
//
// A Key is an ordered, non-empty list of (type, value) parts. The last
// part's type is the subject: the type of the record the key identifies.
// Earlier parts scope it, the way an order line is scoped by its order:
//
//	order := keys.New(orderType, "42")
//	line := order.Extend(lineType, "3")   // subject: lineType
//	parent, _ := line.SkipLast()          // equal to order
//
// Keys are values. Extend and the Skip methods return new keys and never
// modify the receiver, so a key can be used as a primary key in one
// record and a foreign key in another without copying.
//
// Typed[T] refines a Key with a compile-time subject. The Go type is
// mapped to a descriptor through a typedesc.Registry and checked once when
// the Typed key is built.
//
// Keys have no wire form of their own; see package keycodec.
package keys
