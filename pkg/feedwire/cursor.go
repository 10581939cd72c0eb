package feedwire

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor is an opaque position in the newest-first feed order. It is a plain
// (timestamp, tie-break id) pair: it never dereferences the entry it was
// derived from, so a cursor stays valid even after that entry's post is
// deleted.
type Cursor struct {
	// CreatedAt is the creation time of the entry the cursor was derived from.
	CreatedAt time.Time
	// TieBreakID breaks ordering ties between entries sharing one timestamp.
	TieBreakID int64
}

// CursorFromEntry derives the cursor positioned at the given entry.
func CursorFromEntry(entry FeedEntry) Cursor {
	return Cursor{
		CreatedAt:  entry.CreatedAt,
		TieBreakID: entry.ID,
	}
}

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.TieBreakID == 0
}

// String encodes the cursor as "<unix-nanos>.<tie-break-id>" for transport.
func (c Cursor) String() string {
	return strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + strconv.FormatInt(c.TieBreakID, 10)
}

// ParseCursor decodes a cursor produced by String.
func ParseCursor(encoded string) (Cursor, error) {
	nanosPart, idPart, found := strings.Cut(encoded, ".")
	if !found {
		return Cursor{}, fmt.Errorf("parse cursor %q: %w", encoded, ErrInvalidCursor)
	}

	nanos, err := strconv.ParseInt(nanosPart, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor %q timestamp: %w", encoded, ErrInvalidCursor)
	}
	tieBreakID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor %q tie-break id: %w", encoded, ErrInvalidCursor)
	}

	return Cursor{
		CreatedAt:  time.Unix(0, nanos).UTC(),
		TieBreakID: tieBreakID,
	}, nil
}
