package volume

import (
	"encoding/binary"
	"fmt"

	"github.com/coocood/freecache"
)

// minCacheBytes is the smallest cache freecache will allocate.
const minCacheBytes = 512 * 1024

// SliceCache memoizes extracted MPR slices keyed by the volume checksum,
// orientation and index. Slices too large for the cache are extracted on
// every call.
type SliceCache struct {
	cache *freecache.Cache
}

// NewSliceCache allocates a cache of roughly sizeMB megabytes.
func NewSliceCache(sizeMB int) *SliceCache {
	size := sizeMB * 1024 * 1024
	if size < minCacheBytes {
		size = minCacheBytes
	}
	return &SliceCache{cache: freecache.NewCache(size)}
}

func sliceKey(v *Volume, o Orientation, index int) []byte {
	return []byte(fmt.Sprintf("%016x/%d/%d", v.Checksum(), o, index))
}

// Slice returns the requested slice, extracting and caching it on a miss.
func (c *SliceCache) Slice(v *Volume, o Orientation, index int) (*Slice, bool) {
	if index < 0 || index >= v.Count(o) {
		return nil, false
	}
	key := sliceKey(v, o, index)
	if data, err := c.cache.Get(key); err == nil {
		if s := decodeSlice(v, o, index, data); s != nil {
			return s, true
		}
	}
	s, ok := v.Slice(o, index)
	if !ok {
		return nil, false
	}
	// freecache rejects entries above 1/1024 of its size; those simply miss.
	c.cache.Set(key, encodePixels(s.Pixels), 0)
	return s, true
}

// Stats returns the cache hit and miss counts.
func (c *SliceCache) Stats() (hits, misses int64) {
	return c.cache.HitCount(), c.cache.MissCount()
}

// Clear drops every cached slice.
func (c *SliceCache) Clear() {
	c.cache.Clear()
}

func encodePixels(pixels []uint16) []byte {
	buf := make([]byte, 0, len(pixels)*2)
	for _, p := range pixels {
		buf = binary.LittleEndian.AppendUint16(buf, p)
	}
	return buf
}

func decodeSlice(v *Volume, o Orientation, index int, data []byte) *Slice {
	s := &Slice{Orientation: o, Index: index, MinValue: v.minValue, MaxValue: v.maxValue}
	switch o {
	case Axial:
		s.Width, s.Height = v.width, v.height
		s.PixelSpacing = [2]float64{v.spacing.X, v.spacing.Y}
	case Sagittal:
		s.Width, s.Height = v.height, v.depth
		s.PixelSpacing = [2]float64{v.spacing.Y, v.spacing.Z}
	case Coronal:
		s.Width, s.Height = v.width, v.depth
		s.PixelSpacing = [2]float64{v.spacing.X, v.spacing.Z}
	default:
		return nil
	}
	if len(data) != s.Width*s.Height*2 {
		return nil
	}
	s.Pixels = make([]uint16, s.Width*s.Height)
	for i := range s.Pixels {
		s.Pixels[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return s
}
