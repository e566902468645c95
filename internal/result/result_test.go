package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultOkErr(t *testing.T) {
	r := Ok(42)
	require.True(t, r.IsOk())
	require.False(t, r.IsErr())
	v, err := r.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	e := Err[int](boom)
	require.True(t, e.IsErr())
	_, err = e.Unwrap()
	assert.Equal(t, boom, err)
}

func TestMap(t *testing.T) {
	r := Map(Ok(2), func(v int) int { return v * 10 })
	assert.Equal(t, 20, r.Value())

	boom := errors.New("boom")
	e := Map(Err[int](boom), func(v int) int { return v * 10 })
	assert.True(t, e.IsErr())
	assert.Equal(t, boom, e.Error())
}

func TestAndThen(t *testing.T) {
	double := func(v int) Result[int] { return Ok(v * 2) }
	r := AndThen(Ok(3), double)
	assert.Equal(t, 6, r.Value())

	boom := errors.New("boom")
	e := AndThen(Err[int](boom), double)
	assert.True(t, e.IsErr())
}

func TestAllSucceeded(t *testing.T) {
	all := AllSucceeded([]Result[int]{Ok(1), Ok(2), Ok(3)})
	require.True(t, all.IsOk())
	assert.Equal(t, []int{1, 2, 3}, all.Value())

	boom := errors.New("boom")
	withFailure := AllSucceeded([]Result[int]{Ok(1), Err[int](boom), Ok(3)})
	require.True(t, withFailure.IsErr())
	assert.Equal(t, boom, withFailure.Error())
}

func TestOption(t *testing.T) {
	s := Some("x")
	v, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	assert.Equal(t, "x", s.OrElse("y"))

	n := None[string]()
	_, ok = n.Get()
	assert.False(t, ok)
	assert.Equal(t, "y", n.OrElse("y"))
}
