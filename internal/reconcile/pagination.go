package reconcile

// DefaultLimit is the attendance page size used when none is given
const DefaultLimit = 25

// Pagination mirrors the upstream limit/offset/hasMore of the last page
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// CanPrev reports whether there is a previous page
func (p Pagination) CanPrev() bool {
	return p.Offset > 0
}

// CanNext reports whether the upstream announced another page
func (p Pagination) CanNext() bool {
	return p.HasMore
}

// PrevOffset returns the offset one page back, clamped at zero.
// ok is false on the first page.
func (p Pagination) PrevOffset() (offset int, ok bool) {
	if !p.CanPrev() {
		return p.Offset, false
	}
	offset = p.Offset - p.Limit
	if offset < 0 {
		offset = 0
	}
	return offset, true
}

// NextOffset returns the offset one page forward. ok is false without hasMore.
func (p Pagination) NextOffset() (offset int, ok bool) {
	if !p.CanNext() {
		return p.Offset, false
	}
	return p.Offset + p.Limit, true
}
