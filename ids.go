package pagedb

import "encoding/binary"

// PageID identifies a page by its index in the backing file. Page 0 is
// always the metadata page, so PageID(0) doubles as the "no page" sentinel
// in vals/chld arrays (spec: "unused entries are 0" — page 0 is never a
// valid node or value page).
type PageID uint64

// idSize is the on-disk width of a PageID. 6 bytes (48 bits) bounds the
// store to 2^48 pages, which is enormous for fixed 4KB pages; keeping ids
// narrow buys more keys per node.
const idSize = 6

func putID(b []byte, id PageID) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(id))
	copy(b[:idSize], tmp[:idSize])
}

func getID(b []byte) PageID {
	var tmp [8]byte
	copy(tmp[:idSize], b[:idSize])
	return PageID(binary.LittleEndian.Uint64(tmp[:]))
}

// NoPage is the sentinel for an absent child/value pointer.
const NoPage PageID = 0
