package shortener

// Link maps a generated key to the URL it shortens.
//
// A link is immutable once created: there is no update or delete, and a key
// is never reassigned. The URI is stored verbatim, without normalization.
type Link struct {
	Key string
	URI string
}
