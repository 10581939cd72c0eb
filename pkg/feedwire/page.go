package feedwire

// Page is one paginated slice of a feed in newest-first order.
type Page struct {
	// Entries holds the page content, newest first.
	Entries []FeedEntry
	// HasNextPage reports whether strictly older entries remain beyond this
	// page. Always false for cursor-after queries, which return everything
	// newer than the cursor.
	HasNextPage bool
}
