// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides missing functionality to the standard `slices` package.
package xslices

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"slices"
)

// At returns the element at the given index. Negative indices are taken from
// the end, so At(slice, -1) returns the last element.
func At[T any](slice []T, idx int) T {
	if idx < 0 {
		idx = len(slice) + idx
	}
	return slice[idx]
}

// Last returns the last element of the slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Pop removes the last element of the slice and returns it along with the
// shortened slice.
func Pop[T any](slice []T) (T, []T) {
	value := Last(slice)
	return value, slice[:len(slice)-1]
}

// Map applies fn to each element of in and returns the new slice with the results.
func Map[In, Out any](in []In, fn func(In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, element := range in {
		out[ii] = fn(element)
	}
	return
}

// Iota returns a slice of the given length with values start, start+1, start+2, ...
func Iota[T interface {
	constraints.Integer | constraints.Float
}](start T, length int) (slice []T) {
	slice = make([]T, length)
	value := start
	for ii := range slice {
		slice[ii] = value
		value += 1
	}
	return
}

// Keys returns the keys of the map as a slice, in no particular order.
func Keys[K comparable, V any](m map[K]V) []K {
	return maps.Keys(m)
}

// SortedKeys returns the keys of the map as a sorted slice.
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
