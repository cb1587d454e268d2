// Package bitfield packs and unpacks struct fields into integers via
// reflection. It is adapted from the teacher's simplified
// golang.org/x/text/internal/gen/bitfield clone.
//
// It is deliberately NOT used for ABI-critical layouts (GDT/IDT/PTE
// descriptors): those are bit-exact contracts the hardware/ABI fixes, and
// per the core's design notes they are built with explicit shift/mask in
// the owning package (internal/dip, internal/vmm) instead. This package is
// for convenience bitsets where only the in-process representation
// matters: signal vectors, debug flag dumps, plugin interest bitsets.
package bitfield

import (
	"fmt"
	"reflect"
)

// Config determines settings for packing.
type Config struct {
	// NumBits fixes the maximum allowed bits for the integer representation.
	NumBits uint
}

// Pack packs annotated bit ranges of struct x into an integer. Only fields
// tagged `bitfield:",N"` are packed, low field first.
func Pack(x interface{}, c *Config) (packed uint64, err error) {
	if c == nil {
		c = &Config{NumBits: 64}
	}

	v := reflect.ValueOf(x)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, fmt.Errorf("bitfield.Pack: expected struct, got %v", v.Kind())
	}

	t := v.Type()
	var bitOffset uint
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("bitfield")
		if tag == "" {
			continue
		}
		var bits uint
		if _, err := fmt.Sscanf(tag, ",%d", &bits); err != nil {
			return 0, fmt.Errorf("bitfield.Pack: invalid tag %q on field %s", tag, field.Name)
		}
		if bits == 0 {
			continue
		}

		fieldValue := v.Field(i)
		var fieldBits uint64
		switch fieldValue.Kind() {
		case reflect.Bool:
			if fieldValue.Bool() {
				fieldBits = 1
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fieldBits = fieldValue.Uint()
		default:
			return 0, fmt.Errorf("bitfield.Pack: unsupported field type %v for field %s", fieldValue.Kind(), field.Name)
		}

		maxValue := uint64(1)<<bits - 1
		if fieldBits > maxValue {
			return 0, fmt.Errorf("bitfield.Pack: value %d exceeds %d bits for field %s", fieldBits, bits, field.Name)
		}
		packed |= fieldBits << bitOffset
		bitOffset += bits
	}

	if c.NumBits > 0 && bitOffset > c.NumBits {
		return 0, fmt.Errorf("bitfield.Pack: total bits %d exceeds NumBits %d", bitOffset, c.NumBits)
	}
	return packed, nil
}

// Bit reports whether bit i is set in v.
func Bit(v uint32, i uint) bool { return v&(1<<i) != 0 }

// SetBit returns v with bit i set (or cleared, when on is false).
func SetBit(v uint32, i uint, on bool) uint32 {
	if on {
		return v | (1 << i)
	}
	return v &^ (1 << i)
}
