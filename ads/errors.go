package ads

import "fmt"

// Error is an ADS-level error returned by the target device or router.
type Error struct {
	Code uint32
}

func (e *Error) Error() string {
	return fmt.Sprintf("ads error 0x%04X: %s", e.Code, errorName(e.Code))
}

// Frequently seen ADS error codes.
const (
	ErrTargetPortNotFound    uint32 = 0x0006
	ErrTargetMachineNotFound uint32 = 0x0007
	ErrPortNotConnected      uint32 = 0x000D
	ErrDeviceError           uint32 = 0x0700
	ErrDeviceSrvNotSupported uint32 = 0x0701
	ErrDeviceInvalidGroup    uint32 = 0x0702
	ErrDeviceInvalidOffset   uint32 = 0x0703
	ErrDeviceInvalidAccess   uint32 = 0x0704
	ErrDeviceInvalidSize     uint32 = 0x0705
	ErrDeviceInvalidData     uint32 = 0x0706
	ErrDeviceNotReady        uint32 = 0x0707
	ErrDeviceBusy            uint32 = 0x0708
	ErrDeviceInvalidParam    uint32 = 0x070B
	ErrDeviceNotFound        uint32 = 0x070C
	ErrSymbolNotFound        uint32 = 0x0710
	ErrSymbolVersionInvalid  uint32 = 0x0711
	ErrDeviceTimeout         uint32 = 0x0719
	ErrDeviceAccessDenied    uint32 = 0x0723
)

func errorName(code uint32) string {
	switch code {
	case 0:
		return "no error"
	case ErrTargetPortNotFound:
		return "target port not found"
	case ErrTargetMachineNotFound:
		return "target machine not found"
	case ErrPortNotConnected:
		return "port not connected"
	case ErrDeviceError:
		return "device error"
	case ErrDeviceSrvNotSupported:
		return "service not supported"
	case ErrDeviceInvalidGroup:
		return "invalid index group"
	case ErrDeviceInvalidOffset:
		return "invalid index offset"
	case ErrDeviceInvalidAccess:
		return "invalid access"
	case ErrDeviceInvalidSize:
		return "invalid size"
	case ErrDeviceInvalidData:
		return "invalid data"
	case ErrDeviceNotReady:
		return "device not ready"
	case ErrDeviceBusy:
		return "device busy"
	case ErrDeviceInvalidParam:
		return "invalid parameter"
	case ErrDeviceNotFound:
		return "device not found"
	case ErrSymbolNotFound:
		return "symbol not found"
	case ErrSymbolVersionInvalid:
		return "symbol version invalid"
	case ErrDeviceTimeout:
		return "timeout"
	case ErrDeviceAccessDenied:
		return "access denied"
	default:
		return "unknown error"
	}
}
