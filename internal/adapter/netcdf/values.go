package netcdf

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// flatten walks the nested slices the decoder returns for an n-D variable
// and returns the values row-major together with the shape.
func flatten(v interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	var shape []int
	for cur := rv; cur.Kind() == reflect.Slice || cur.Kind() == reflect.Array; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}
	size := 1
	for _, n := range shape {
		size *= n
	}
	out := make([]float64, 0, size)
	if err := appendValues(&out, rv); err != nil {
		return nil, nil, err
	}
	if len(out) != size {
		return nil, nil, fmt.Errorf("ragged array: %d values for shape %v", len(out), shape)
	}
	return out, shape, nil
}

func appendValues(out *[]float64, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := appendValues(out, rv.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Float32, reflect.Float64:
		*out = append(*out, rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		*out = append(*out, float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		*out = append(*out, float64(rv.Uint()))
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			*out = append(*out, math.NaN())
			return nil
		}
		return appendValues(out, rv.Elem())
	default:
		return fmt.Errorf("unsupported value type %s", rv.Type())
	}
	return nil
}

// attrString returns a text attribute, or "" when absent.
func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	v, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimRight(s, "\x00")
	case []byte:
		return strings.TrimRight(string(s), "\x00")
	default:
		return fmt.Sprint(v)
	}
}

// attrFloat returns the first value of a numeric attribute.
func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	if _, isText := v.(string); isText {
		return 0, false
	}
	vals, _, err := flatten(v)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// unpack applies the CF packing and missing-value conventions in place:
// fill and missing values become NaN, then scale_factor and add_offset apply.
func unpack(values []float64, attrs api.AttributeMap) {
	fill, hasFill := attrFloat(attrs, "_FillValue")
	missing, hasMissing := attrFloat(attrs, "missing_value")
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}
	for i, v := range values {
		switch {
		case hasFill && sameValue(v, fill), hasMissing && sameValue(v, missing):
			values[i] = math.NaN()
		case math.Abs(v) >= 9.9e36:
			// default netCDF float fill
			values[i] = math.NaN()
		default:
			values[i] = v*scale + offset
		}
	}
}

// sameValue compares in float32 precision since fill values are often
// stored as float32 next to float64 data.
func sameValue(a, b float64) bool {
	return a == b || float32(a) == float32(b)
}
