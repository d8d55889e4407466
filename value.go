package pagedb

import "fmt"

// valueHeaderSize is data_size (uint32) + next_page (PageID), spec §3
// "Value page".
const valueHeaderSize = 4 + idSize

// encodeValue builds a pageSize-byte value page: {data_size, next_page=0,
// payload}. next_page is reserved but unused this revision (design
// note 9.4) — chaining across pages is never produced, only the field
// is kept so a future revision can use it without a format break.
func encodeValue(data []byte, pageSize int) ([]byte, error) {
	capacity := pageSize - valueHeaderSize
	if len(data) > capacity {
		return nil, fmt.Errorf("value: %d bytes exceeds capacity %d: %w", len(data), capacity, ErrValueTooLarge)
	}
	buf := make([]byte, pageSize)
	be32put(buf[0:4], uint32(len(data)))
	putID(buf[4:4+idSize], NoPage)
	copy(buf[valueHeaderSize:], data)
	return buf, nil
}

// decodeValue reads the header then data_size bytes of payload, returning
// a freshly-owned copy (spec §4.4).
func decodeValue(buf []byte) ([]byte, error) {
	if len(buf) < valueHeaderSize {
		return nil, fmt.Errorf("value: page too short: %w", ErrCorruptNode)
	}
	size := be32get(buf[0:4])
	if int(size) > len(buf)-valueHeaderSize {
		return nil, fmt.Errorf("value: data_size=%d exceeds page: %w", size, ErrCorruptNode)
	}
	out := make([]byte, size)
	copy(out, buf[valueHeaderSize:valueHeaderSize+int(size)])
	return out, nil
}

// writeValue allocates a fresh page and writes data into it as a value
// page, returning the new page's id. Each key owns exactly one value
// page; values are never shared between keys (spec §4.4).
func writeValue(pager *Pager, alloc *Allocator, data []byte) (PageID, error) {
	encoded, err := encodeValue(data, pager.PageSize())
	if err != nil {
		return 0, err
	}
	id, err := alloc.Allocate()
	if err != nil {
		return 0, err
	}
	if err := pager.WritePage(id, encoded); err != nil {
		_ = alloc.Free(id)
		return 0, err
	}
	return id, nil
}

// readValue reads and decodes the value page at id.
func readValue(pager *Pager, id PageID) ([]byte, error) {
	buf, err := pager.ReadPage(id)
	if err != nil {
		return nil, err
	}
	return decodeValue(buf)
}

func be32put(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func be32get(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
