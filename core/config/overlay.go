package config

import (
	"reflect"
)

// Overlay copies every non-zero field of src onto dst, recursing into
// nested structs. Non-empty slices replace the destination slice.
func Overlay(dst, src *Config) {
	if dst == nil || src == nil {
		return
	}
	overlayValue(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func overlayValue(dst, src reflect.Value) {
	if !dst.CanSet() || !src.IsValid() {
		return
	}

	switch dst.Kind() {
	case reflect.Struct:
		for i := 0; i < dst.NumField(); i++ {
			overlayValue(dst.Field(i), src.Field(i))
		}
	case reflect.Slice:
		if src.Len() > 0 {
			dst.Set(src)
		}
	default:
		if !src.IsZero() {
			dst.Set(src)
		}
	}
}
