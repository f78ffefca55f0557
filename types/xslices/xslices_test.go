package xslices

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestMap(t *testing.T) {
	count := 17
	in := make([]int, count)
	for ii := 0; ii < count; ii++ {
		in[ii] = ii
	}
	out := Map(in, func(v int) int32 { return int32(v + 1) })
	for ii := 0; ii < count; ii++ {
		assert.Equalf(t, int32(ii+1), out[ii], "element %d doesn't match", ii)
	}
}

func TestAtAndLast(t *testing.T) {
	slice := []int{0, 1, 2, 3, 4, 5}
	assert.Equal(t, 5, At(slice, -1))
	assert.Equal(t, 4, At(slice, -2))
	assert.Equal(t, 5, Last(slice))
}

func TestPop(t *testing.T) {
	slice := []int{0, 1, 2, 3, 4, 5}
	var got int
	got, slice = Pop(slice)
	assert.Equal(t, 5, got)
	assert.Len(t, slice, 5)

	got, slice = Pop(slice)
	assert.Equal(t, 4, got)
	assert.Len(t, slice, 4)
}

func TestIota(t *testing.T) {
	assert.Equal(t, []int32{3, 4, 5}, Iota(int32(3), 3))
	assert.Equal(t, []float64{0, 1, 2, 3}, Iota(0.0, 4))
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"c": 2, "a": 0, "b": 1}
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(m))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, Keys(m))
}
