// Package reified turns struct declarations into runtime descriptors that
// decode and encode instances in every supported representation: raw field
// maps, typed fields reported by the object API, BCS binary and JSON.
//
// A Registry holds declarations. Registry.Reified binds concrete type
// arguments to a declaration and returns a *Struct descriptor; descriptors
// are memoised per full type tag and are safe for concurrent use.
//
//	reg := reified.NewRegistry()
//	reg.MustRegister(reified.NewDecl("0x1::pair::Pair", reified.Param("A"), reified.Param("B")).
//		Field("first", "A").
//		Field("second", "B"))
//	pair := reg.MustReified("0x1::pair::Pair", reified.U64, reified.Bool)
//	inst, err := pair.FromBCS(data)
package reified
