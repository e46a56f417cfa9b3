package domain

import "fmt"

// Variant is the one-byte packet tag at offset 3 of a raw payload.
type Variant uint8

// Known packet variants.
const (
	Variant13 Variant = 0x13
	Variant14 Variant = 0x14
	Variant15 Variant = 0x15
	Variant16 Variant = 0x16
	Variant17 Variant = 0x17
)

func (v Variant) String() string {
	return fmt.Sprintf("0x%02X", uint8(v))
}

// Known reports whether v is in the variant table.
func (v Variant) Known() bool {
	return v.layout() != layoutUnknown
}

// layout groups variants that share a byte encoding.
type layout int

const (
	layoutUnknown layout = iota
	// 0x13: offset temperature, two-branch humidity.
	layoutSplitHumidity
	// 0x14: offset temperature, humidity not transmitted.
	layoutNoHumidity
	// 0x15, 0x16, 0x17: raised temperature base, linear humidity.
	layoutLinearHumidity
)

func (v Variant) layout() layout {
	switch v {
	case Variant13:
		return layoutSplitHumidity
	case Variant14:
		return layoutNoHumidity
	case Variant15, Variant16, Variant17:
		return layoutLinearHumidity
	default:
		return layoutUnknown
	}
}
