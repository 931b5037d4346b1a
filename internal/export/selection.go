package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// Selection is the set of dataset set indices to export. The zero value
// selects nothing, which Build treats as "everything".
type Selection struct {
	bm *roaring.Bitmap
}

// NewSelection selects the given indices. Indices outside
// [0, math.MaxUint32] are ignored.
func NewSelection(indices ...int) Selection {
	bm := roaring.New()
	for _, i := range indices {
		if i >= 0 && uint64(i) <= math.MaxUint32 {
			bm.Add(uint32(i))
		}
	}
	return Selection{bm: bm}
}

// ParseSelection reads a comma-separated list of indices and inclusive
// ranges, e.g. "0,2,4-6". An empty string selects nothing.
func ParseSelection(s string) (Selection, error) {
	bm := roaring.New()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parseIndex(lo)
		if err != nil {
			return Selection{}, err
		}
		end := start
		if isRange {
			if end, err = parseIndex(hi); err != nil {
				return Selection{}, err
			}
			if end < start {
				return Selection{}, fmt.Errorf("invalid range %q", part)
			}
		}
		bm.AddRange(start, end+1)
	}
	return Selection{bm: bm}, nil
}

// parseIndex reads one index; bitmaps hold at most math.MaxUint32.
func parseIndex(s string) (uint64, error) {
	i, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid set index %q", s)
	}
	return i, nil
}

// IsEmpty reports whether nothing is selected.
func (s Selection) IsEmpty() bool {
	return s.bm == nil || s.bm.IsEmpty()
}

// Contains reports whether index i is selected.
func (s Selection) Contains(i int) bool {
	return s.bm != nil && i >= 0 && s.bm.ContainsInt(i)
}

// Indices returns the selected indices in ascending order.
func (s Selection) Indices() []int {
	if s.bm == nil {
		return nil
	}
	out := make([]int, 0, s.bm.GetCardinality())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Without returns the indices of s that other does not select.
func (s Selection) Without(other Selection) Selection {
	if s.bm == nil {
		return Selection{}
	}
	if other.bm == nil {
		return Selection{bm: s.bm.Clone()}
	}
	return Selection{bm: roaring.AndNot(s.bm, other.bm)}
}

// Min returns the smallest selected index, or -1 when nothing is selected.
func (s Selection) Min() int {
	if s.IsEmpty() {
		return -1
	}
	return int(s.bm.Minimum())
}

// Len returns the number of selected indices.
func (s Selection) Len() int {
	if s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

func (s Selection) String() string {
	idx := s.Indices()
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
