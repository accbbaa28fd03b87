// Package hello provides the demo service of the restrpc command line tool.
//
// HelloService has an overloaded remote method: Hello and HelloByNumber are both
// called Hello on the wire and the runtime type of the argument selects the
// implementation. Client is a typed stub on top of a protocol.Referer, it is what
// a stub generator would emit for the interface.
package hello
