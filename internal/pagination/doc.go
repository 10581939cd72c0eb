// Package pagination implements cursor paging over a newest-first feed
// sequence. The same request semantics are provided twice: Paginate walks an
// in-memory window served by the bounded list cache, FromSource issues keyset
// queries against the durable store. Both must produce identical results for
// identical data, which is what lets readers blend cache and durable pages
// behind one contract.
package pagination
