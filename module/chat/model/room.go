package model

import "sort"

// RoomSeparator joins the two canonical participant IDs into a room ID.
const RoomSeparator = "-"

// RoomID derives the canonical room identifier for a participant pair.
// The IDs are sorted lexicographically first, so the result is symmetric:
// RoomID(a, b) == RoomID(b, a). Everything downstream (fan-out, lookup,
// conversation keys) relies on that invariant.
func RoomID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + RoomSeparator + pair[1]
}
