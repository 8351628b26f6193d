package tagset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet_AddAndContains(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("cat"))
	require.NoError(t, s.Add("dog"))
	require.True(t, s.Contains("cat"))
	require.False(t, s.Contains("bird"))
	require.Equal(t, 2, s.Len())
}

func TestSet_Add_Duplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("cat"))
	require.NoError(t, s.Add("cat"))
	require.Equal(t, 1, s.Len())
}

func TestSet_Add_InvalidTag(t *testing.T) {
	s := New()
	require.Error(t, s.Add(""))
}

func TestSet_Sorted(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("dog"))
	require.NoError(t, s.Add("cat"))
	require.NoError(t, s.Add("bird"))

	got := s.Sorted()
	require.Equal(t, []Tag{"bird", "cat", "dog"}, got)
}

func TestSet_Equal(t *testing.T) {
	a, _ := NewFromStrings([]string{"cat", "dog"})
	b, _ := NewFromStrings([]string{"dog", "cat"})
	c, _ := NewFromStrings([]string{"dog"})

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestSet_Empty(t *testing.T) {
	s := New()
	require.True(t, s.Empty())
	require.NoError(t, s.Add("x"))
	require.False(t, s.Empty())
}
