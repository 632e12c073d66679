package native

// The weak checksum is the two-component rolling sum from the rsync thesis.
// Both components are kept modulo 2^16; since 2^16 divides 2^32, plain
// uint32 wraparound arithmetic stays correct and the modulus is only applied
// when producing a digest.

const weakModulus = 1 << 16

// Rollsum computes the weak checksum of a window incrementally. The
// weighting of the second component always uses the full block length, even
// for windows shorter than a block, so that signature generation and delta
// search agree on short trailing blocks.
type Rollsum struct {
	blockLength uint32
	pos         uint32
	r1, r2      uint32
}

// NewRollsum creates a rolling checksum for windows of the given block
// length.
func NewRollsum(blockLength uint32) *Rollsum {
	return &Rollsum{blockLength: blockLength}
}

// Update absorbs p at the current window position. It is only valid while
// the window is still filling; once a full block has been absorbed, advance
// with Rotate instead.
func (r *Rollsum) Update(p []byte) {
	for _, b := range p {
		r.r1 += uint32(b)
		r.r2 += (r.blockLength - r.pos) * uint32(b)
		r.pos++
	}
}

// Rotate slides a full-block window one byte forward, removing out from the
// head and appending in at the tail.
func (r *Rollsum) Rotate(out, in byte) {
	r.r1 = r.r1 - uint32(out) + uint32(in)
	r.r2 = r.r2 - r.blockLength*uint32(out) + r.r1
}

// Digest returns the current weak checksum.
func (r *Rollsum) Digest() uint32 {
	return (r.r1 % weakModulus) + weakModulus*(r.r2%weakModulus)
}

// Reset clears the checksum for a fresh window.
func (r *Rollsum) Reset() {
	r.pos = 0
	r.r1 = 0
	r.r2 = 0
}

// weakSum computes the checksum of block in one shot, with the weighting of
// a full blockLength-sized window.
func weakSum(block []byte, blockLength uint32) uint32 {
	rs := Rollsum{blockLength: blockLength}
	rs.Update(block)
	return rs.Digest()
}
