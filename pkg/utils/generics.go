package utils

import (
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

func Pointer[T any](t T) *T {
	return &t
}

func MapKeys[K comparable, V any](m map[K]V, cmp ...func(a, b K) int) []K {
	r := []K{}

	for k := range m {
		r = append(r, k)
	}
	if len(cmp) > 0 {
		slices.SortFunc(r, cmp[0])
	}
	return r
}

func TransformSlice[E any, A ~[]E, T any](in A, m func(E) T) []T {
	r := make([]T, len(in))
	for i, v := range in {
		r[i] = m(v)
	}
	return r
}

// SortedList provides the elements of a set ordered by the given
// comparison function. Sets of non-ordered element types cannot use
// sets.List.
func SortedList[E comparable](s sets.Set[E], cmp func(a, b E) int) []E {
	r := s.UnsortedList()
	slices.SortFunc(r, cmp)
	return r
}
