package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/lispkit/lang/value"
)

func TestConsAccessors(t *testing.T) {
	list := value.SliceToList([]value.Value{value.Int(1), value.Int(2), value.Int(3), value.Int(4)})
	assert.Equal(t, value.Int(1), value.First(list))
	assert.Equal(t, value.Int(2), value.Second(list))
	assert.Equal(t, value.Int(3), value.Third(list))
	assert.Equal(t, value.Int(4), value.Fourth(list))
	assert.True(t, value.IsNil(value.AfterThird(list)))
	assert.Equal(t, 4, value.Length(list))
	assert.True(t, value.IsProperList(list))
}

func TestConsOnAtom(t *testing.T) {
	assert.Equal(t, value.Nil, value.First(value.Int(1)))
	assert.Equal(t, value.Nil, value.Rest(value.Int(1)))
	assert.Equal(t, -1, value.Length(value.Int(1)))
	assert.False(t, value.IsProperList(value.Int(1)))
}

func TestDottedList(t *testing.T) {
	dotted := value.ListStar([]value.Value{value.Int(1), value.Int(2)}, value.Int(3))
	assert.False(t, value.IsProperList(dotted))
	assert.Equal(t, 2, value.Length(dotted))
	assert.Equal(t, []value.Value{value.Int(1), value.Int(2)}, value.ListToSlice(dotted))
}
