package sessionlog

// ring is a fixed-capacity circular buffer of entries. Not safe for
// concurrent use; Recorder holds its lock around every call.
type ring struct {
	buf   []Entry
	head  int
	count int
}

// newRing clamps capacity to at least 1.
func newRing(capacity int) ring {
	return ring{buf: make([]Entry, max(capacity, 1))}
}

func (rb *ring) push(entry Entry) {
	size := len(rb.buf)
	if rb.count < size {
		rb.buf[(rb.head+rb.count)%size] = entry
		rb.count++
		return
	}
	rb.buf[rb.head] = entry
	rb.head = (rb.head + 1) % size
}

// snapshot copies the entries oldest first.
func (rb *ring) snapshot() []Entry {
	if rb.count == 0 {
		return []Entry{}
	}
	out := make([]Entry, rb.count)
	first := min(len(rb.buf)-rb.head, rb.count)
	copy(out, rb.buf[rb.head:rb.head+first])
	if rest := rb.count - first; rest > 0 {
		copy(out[first:], rb.buf[:rest])
	}
	return out
}
