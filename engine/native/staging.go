package native

import "encoding/binary"

// emitter stages encoded output that did not fit in the caller's output
// window, so a job can resume draining on the next step.
type emitter struct {
	pending []byte
	off     int
}

func (e *emitter) empty() bool {
	return e.off == len(e.pending)
}

func (e *emitter) drain(out []byte) int {
	n := copy(out, e.pending[e.off:])
	e.off += n
	if e.empty() {
		e.pending = e.pending[:0]
		e.off = 0
	}
	return n
}

func (e *emitter) putByte(b byte) {
	e.pending = append(e.pending, b)
}

func (e *emitter) putUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	e.pending = append(e.pending, buf[:]...)
}

func (e *emitter) putUint64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	e.pending = append(e.pending, buf[:]...)
}

func (e *emitter) put(p []byte) {
	e.pending = append(e.pending, p...)
}

// taker assembles fixed-size records from input that may arrive in
// arbitrarily small chunks, stashing partial records between steps. The
// returned slice is only valid until the next call.
type taker struct {
	stash []byte
}

func (t *taker) buffered() int {
	return len(t.stash)
}

// take returns n bytes, consuming them from in starting at *consumed, or
// reports false if not enough input is available yet (in which case the
// remainder has been stashed and fully consumed).
func (t *taker) take(in []byte, consumed *int, n int) ([]byte, bool) {
	avail := in[*consumed:]
	if len(t.stash) == 0 {
		if len(avail) >= n {
			v := avail[:n]
			*consumed += n
			return v, true
		}
		t.stash = append(t.stash, avail...)
		*consumed += len(avail)
		return nil, false
	}

	need := n - len(t.stash)
	if need > len(avail) {
		t.stash = append(t.stash, avail...)
		*consumed += len(avail)
		return nil, false
	}
	t.stash = append(t.stash, avail[:need]...)
	*consumed += need
	v := t.stash[:n]
	t.stash = t.stash[:0]
	return v, true
}
