package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/lispkit/lang/value"
)

func TestEnvFrames(t *testing.T) {
	outer := value.NewEnv(nil, 2)
	outer.Slots[0] = value.Int(10)
	outer.Slots[1] = value.Int(20)

	inner := value.NewEnv(outer, 1)
	inner.Slots[0] = value.Int(1)

	assert.Equal(t, value.Int(1), inner.Get(0, 0))
	assert.Equal(t, value.Int(10), inner.Get(1, 0))
	assert.Equal(t, value.Int(20), inner.Get(1, 1))

	inner.Set(1, 0, value.Int(99))
	assert.Equal(t, value.Int(99), outer.Slots[0])
}
