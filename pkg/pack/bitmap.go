package pack

import "math/bits"

// Bitmap is a 1-bit texel occupancy grid stored as rows of 64-bit words.
type Bitmap struct {
	Width, Height int
	stride        int
	words         []uint64
}

// NewBitmap creates an empty w*h bitmap.
func NewBitmap(w, h int) *Bitmap {
	stride := (w + 63) / 64
	return &Bitmap{Width: w, Height: h, stride: stride, words: make([]uint64, stride*h)}
}

// Get reports whether texel (x, y) is set. Out of range texels are unset.
func (b *Bitmap) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.words[y*b.stride+x/64]&(1<<(uint(x)%64)) != 0
}

// Set marks texel (x, y). Out of range texels are ignored.
func (b *Bitmap) Set(x, y int) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	b.words[y*b.stride+x/64] |= 1 << (uint(x) % 64)
}

// Count returns the number of set texels.
func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Bytes returns the storage size of the bitmap.
func (b *Bitmap) Bytes() int64 { return int64(len(b.words)) * 8 }

// shiftedWord returns the 64 texels of row y of b starting at column x.
func (b *Bitmap) shiftedWord(x, y int) uint64 {
	row := b.words[y*b.stride : (y+1)*b.stride]
	i, s := x/64, uint(x%64)
	var w uint64
	if i < len(row) {
		w = row[i] >> s
	}
	if s != 0 && i+1 < len(row) {
		w |= row[i+1] << (64 - s)
	}
	return w
}

// Overlaps reports whether any set texel of other, placed with its origin at
// (x, y), lands on a set texel of b. Texels of other outside b count as
// overlapping.
func (b *Bitmap) Overlaps(other *Bitmap, x, y int) bool {
	if x < 0 || y < 0 || x+other.Width > b.Width || y+other.Height > b.Height {
		return true
	}
	for oy := 0; oy < other.Height; oy++ {
		orow := other.words[oy*other.stride : (oy+1)*other.stride]
		for i, ow := range orow {
			if ow == 0 {
				continue
			}
			if b.shiftedWord(x+i*64, y+oy)&ow != 0 {
				return true
			}
		}
	}
	return false
}

// Or sets every texel of b covered by other placed at (x, y).
func (b *Bitmap) Or(other *Bitmap, x, y int) {
	for oy := 0; oy < other.Height; oy++ {
		for ox := 0; ox < other.Width; ox++ {
			if other.Get(ox, oy) {
				b.Set(x+ox, y+oy)
			}
		}
	}
}

// Resize returns a copy of b with a new size, keeping texels that fit.
func (b *Bitmap) Resize(w, h int) *Bitmap {
	out := NewBitmap(w, h)
	rows := min(h, b.Height)
	n := min(out.stride, b.stride)
	for y := 0; y < rows; y++ {
		copy(out.words[y*out.stride:y*out.stride+n], b.words[y*b.stride:y*b.stride+n])
	}
	if w < b.Width {
		// Clear bits past the new width in the last word.
		if rem := w % 64; rem != 0 {
			mask := uint64(1)<<uint(rem) - 1
			for y := 0; y < rows; y++ {
				out.words[y*out.stride+out.stride-1] &= mask
			}
		}
	}
	return out
}

// Dilate returns a copy of b where every set texel also sets its neighbours
// within r texels in both axes.
func (b *Bitmap) Dilate(r int) *Bitmap {
	if r <= 0 {
		out := NewBitmap(b.Width, b.Height)
		copy(out.words, b.words)
		return out
	}
	out := NewBitmap(b.Width, b.Height)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if !b.Get(x, y) {
				continue
			}
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					out.Set(x+dx, y+dy)
				}
			}
		}
	}
	return out
}
