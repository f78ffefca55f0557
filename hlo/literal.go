// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hlo

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/hlo/types/shapes"
	"github.com/x448/float16"
)

// Literal is a constant value, materialized in the graph by an OpCodeConstant
// instruction. It stores the flat data for its shape, in row-major order.
// Tuple literals are not supported, use a Tuple instruction over constants instead.
type Literal struct {
	shape shapes.Shape
	flat  any
}

// NewScalarLiteral creates a scalar literal with the DType corresponding to the Go
// type of value.
func NewScalarLiteral[T dtypes.Supported](value T) *Literal {
	return &Literal{
		shape: shapes.Make(dtypes.FromGenericsType[T]()),
		flat:  []T{value},
	}
}

// NewLiteralFromFlat creates a literal with the given dimensions, with the data given
// flat in row-major order.
func NewLiteralFromFlat[T dtypes.Supported](flat []T, dimensions ...int) *Literal {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if shape.Size() != len(flat) {
		exceptions.Panicf("hlo.NewLiteralFromFlat: shape %s requires %d values, flat has %d", shape, shape.Size(), len(flat))
	}
	return &Literal{shape: shape, flat: flat}
}

// Shape of the literal.
func (l *Literal) Shape() shapes.Shape { return l.shape }

// Flat returns the flat data slice backing the literal, e.g. a []int32 for an Int32
// literal. Don't modify the returned slice.
func (l *Literal) Flat() any { return l.flat }

// String implements stringer. Scalars print their value, small arrays print as
// "{v0, v1, ...}" and anything larger prints as "{...}".
func (l *Literal) String() string {
	const maxRendered = 8
	if l.shape.IsScalar() {
		return l.valueStrings(1)[0]
	}
	if l.shape.Size() > maxRendered {
		return "{...}"
	}
	return "{" + strings.Join(l.valueStrings(l.shape.Size()), ", ") + "}"
}

// valueStrings renders the first count values. Float16 and BFloat16 are rendered as
// their float32 values, everything else with the default formatting.
func (l *Literal) valueStrings(count int) []string {
	parts := make([]string, count)
	switch flat := l.flat.(type) {
	case []float16.Float16:
		for ii := range parts {
			parts[ii] = strconv.FormatFloat(float64(flat[ii].Float32()), 'g', -1, 32)
		}
	case []bfloat16.BFloat16:
		for ii := range parts {
			parts[ii] = strconv.FormatFloat(float64(flat[ii].Float32()), 'g', -1, 32)
		}
	default:
		valueOf := reflect.ValueOf(l.flat)
		for ii := range parts {
			parts[ii] = fmt.Sprintf("%v", valueOf.Index(ii).Interface())
		}
	}
	return parts
}
