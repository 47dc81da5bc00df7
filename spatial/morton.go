package spatial

// MaxDepth is the deepest supported tree. Grid coordinates are spread over 16
// bits each so that a key fits in 32 bits.
const MaxDepth = 16

// Morton interleaves the bits of two grid coordinates: bits of x land on even
// positions and bits of z on odd ones.
//
// See http://graphics.stanford.edu/~seander/bithacks.html#InterleaveBMN
func Morton(x, z uint32) uint32 {
	return spread(z)<<1 | spread(x)
}

// spread inserts a zero bit between each of the 16 low bits of n.
func spread(n uint32) uint32 {
	n &= 0x0000ffff
	n = (n ^ (n << 8)) & 0x00ff00ff
	n = (n ^ (n << 4)) & 0x0f0f0f0f
	n = (n ^ (n << 2)) & 0x33333333
	n = (n ^ (n << 1)) & 0x55555555
	return n
}
