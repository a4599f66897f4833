package ads

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TwinCAT data type codes. ADS payloads are little-endian (native x86).
const (
	TypeVoid    uint16 = 0x00
	TypeInt16   uint16 = 0x02 // INT
	TypeInt32   uint16 = 0x03 // DINT
	TypeReal    uint16 = 0x04 // REAL
	TypeLReal   uint16 = 0x05 // LREAL
	TypeSByte   uint16 = 0x10 // SINT
	TypeByte    uint16 = 0x11 // BYTE/USINT
	TypeWord    uint16 = 0x12 // WORD/UINT
	TypeDWord   uint16 = 0x13 // DWORD/UDINT
	TypeInt64   uint16 = 0x14 // LINT
	TypeLWord   uint16 = 0x15 // LWORD/ULINT
	TypeLTime   uint16 = 0x16 // LTIME (64-bit, nanoseconds)
	TypeString  uint16 = 0x1E // STRING
	TypeWString uint16 = 0x1F // WSTRING
	TypeBool    uint16 = 0x21 // BOOL
	TypeTime    uint16 = 0x30 // TIME (32-bit, milliseconds)
	TypeDate    uint16 = 0x31
	TypeTimeOfDay uint16 = 0x32
	TypeDateTime  uint16 = 0x33

	TypeUnknown uint16 = 0xFFFF
)

// TypeName returns the IEC 61131 name for a type code.
func TypeName(code uint16) string {
	switch code {
	case TypeVoid:
		return "VOID"
	case TypeBool:
		return "BOOL"
	case TypeByte:
		return "BYTE"
	case TypeSByte:
		return "SINT"
	case TypeWord:
		return "WORD"
	case TypeInt16:
		return "INT"
	case TypeDWord:
		return "DWORD"
	case TypeInt32:
		return "DINT"
	case TypeLWord:
		return "LWORD"
	case TypeInt64:
		return "LINT"
	case TypeReal:
		return "REAL"
	case TypeLReal:
		return "LREAL"
	case TypeString:
		return "STRING"
	case TypeWString:
		return "WSTRING"
	case TypeTime:
		return "TIME"
	case TypeLTime:
		return "LTIME"
	case TypeDate:
		return "DATE"
	case TypeTimeOfDay:
		return "TIME_OF_DAY"
	case TypeDateTime:
		return "DATE_AND_TIME"
	default:
		return fmt.Sprintf("TYPE_%04X", code)
	}
}

// typeSize returns the byte size of a fixed-width type, 0 for
// variable-length or unknown types.
func typeSize(code uint16) int {
	switch code {
	case TypeBool, TypeByte, TypeSByte:
		return 1
	case TypeWord, TypeInt16:
		return 2
	case TypeDWord, TypeInt32, TypeReal, TypeTime, TypeDate, TypeTimeOfDay:
		return 4
	case TypeLWord, TypeInt64, TypeLReal, TypeLTime, TypeDateTime:
		return 8
	default:
		return 0
	}
}

// mapAdsType maps the ADST_* enum reported in symbol info to a type code.
func mapAdsType(adsType uint32) uint16 {
	switch adsType {
	case 0: // ADST_VOID
		return TypeVoid
	case 2: // ADST_INT16
		return TypeInt16
	case 3: // ADST_INT32
		return TypeInt32
	case 4: // ADST_REAL32
		return TypeReal
	case 5: // ADST_REAL64
		return TypeLReal
	case 16: // ADST_INT8
		return TypeSByte
	case 17: // ADST_UINT8
		return TypeByte
	case 18: // ADST_UINT16
		return TypeWord
	case 19: // ADST_UINT32
		return TypeDWord
	case 20: // ADST_INT64
		return TypeInt64
	case 21: // ADST_UINT64
		return TypeLWord
	case 30: // ADST_STRING
		return TypeString
	case 31: // ADST_WSTRING
		return TypeWString
	case 33: // ADST_BIT
		return TypeBool
	default:
		return TypeUnknown
	}
}

// decodeValue converts the raw bytes of a scalar read into the matching Go
// type: BOOL -> bool, signed integers -> int64, unsigned -> uint64,
// REAL/LREAL -> float64, STRING/WSTRING -> string.
func decodeValue(code uint16, raw []byte) (interface{}, error) {
	size := typeSize(code)
	if size > 0 && len(raw) < size {
		return nil, fmt.Errorf("%s value truncated: %d of %d bytes", TypeName(code), len(raw), size)
	}

	switch code {
	case TypeBool:
		return raw[0] != 0, nil

	case TypeSByte:
		return int64(int8(raw[0])), nil

	case TypeByte:
		return uint64(raw[0]), nil

	case TypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(raw))), nil

	case TypeWord:
		return uint64(binary.LittleEndian.Uint16(raw)), nil

	case TypeInt32, TypeTime, TypeTimeOfDay:
		return int64(int32(binary.LittleEndian.Uint32(raw))), nil

	case TypeDWord, TypeDate:
		return uint64(binary.LittleEndian.Uint32(raw)), nil

	case TypeInt64, TypeDateTime:
		return int64(binary.LittleEndian.Uint64(raw)), nil

	case TypeLWord, TypeLTime:
		return binary.LittleEndian.Uint64(raw), nil

	case TypeReal:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil

	case TypeLReal:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil

	case TypeString:
		// Null-terminated within the declared buffer.
		for i, b := range raw {
			if b == 0 {
				return string(raw[:i]), nil
			}
		}
		return string(raw), nil

	case TypeWString:
		// UTF-16LE, null-terminated.
		var chars []rune
		for i := 0; i+1 < len(raw); i += 2 {
			c := binary.LittleEndian.Uint16(raw[i:])
			if c == 0 {
				break
			}
			chars = append(chars, rune(c))
		}
		return string(chars), nil
	}

	return nil, fmt.Errorf("unsupported data type %s", TypeName(code))
}
