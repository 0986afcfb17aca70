// services/power/platform/board.go
package platform

import "propcore-go/services/power/internal/pwrcore"

// Board pin assignment, bank*16 + index numbering (bank A = 0..15,
// bank B = 16..31, ...). Matches the prop's schematic.
const (
	PinSerialRX      = 10 // A10, wake on rising edge
	PinButton        = 11 // A11, wake on falling edge
	PinBooster       = 15 // A15, boost enable
	PinPixelEnable   = 18 // B2, pixel rail enable
	PinAmplifier     = 20 // B4, amplifier enable
	PinChargeDetect  = 21 // B5
	PinChargeCurrent = 22 // B6
	PinChargeEnable  = 23 // B7
	PinStoragePower  = 28 // B12, SD rail (active low)
)

// lowPowerPlan parks every pin not needed for wake detection or always-on
// rails. Kept out of the masks:
//
//	bank A: A8 (clock sync), A9/A10 (serial), A11 (button), A15 (boost)
//	bank B: B2 (pixel rail), B4 (amplifier), B12 (storage rail)
func lowPowerPlan() []pwrcore.BankMask {
	return []pwrcore.BankMask{
		{Bank: "A", Mask: 0b0111000011111111},
		{Bank: "B", Mask: 0b1110111111101011},
		{Bank: "C", Mask: 0b1110000000000000},
		{Bank: "H", Mask: 0b0000000000000011},
	}
}

// BankBase maps a bank name to its first pin number.
func BankBase(bank string) (int, bool) {
	switch bank {
	case "A":
		return 0, true
	case "B":
		return 16, true
	case "C":
		return 32, true
	case "H":
		return 48, true
	default:
		return 0, false
	}
}

// Banks lists the I/O banks the sleep protocol touches.
var Banks = []string{"A", "B", "C", "H"}
