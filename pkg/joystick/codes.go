// Package joystick reads gamepad events from Linux evdev nodes.
//
// Controls are named the way python-evdev and evtest name them.  Where the
// kernel has several aliases for one code, the alphabetically first alias is
// the canonical name, so a pad reporting 0x133 produces BTN_NORTH (and a button
// remap can turn that into BTN_X).
//
// Axes (typical dual-stick pad)
//
//	L stick l/r = ABS_X   (left = -32767; right = +32767)
//	L stick u/d = ABS_Y   (up = -32767; down = +32767)
//	R stick l/r = ABS_RX
//	R stick u/d = ABS_RY
//	L2 / R2     = ABS_Z / ABS_RZ
//	D-pad l/r   = ABS_HAT0X (-1, 0, +1)
//	D-pad u/d   = ABS_HAT0Y (-1, 0, +1)
package joystick

import "fmt"

var axisNames = map[uint16]string{
	0x00: "ABS_X",
	0x01: "ABS_Y",
	0x02: "ABS_Z",
	0x03: "ABS_RX",
	0x04: "ABS_RY",
	0x05: "ABS_RZ",
	0x06: "ABS_THROTTLE",
	0x07: "ABS_RUDDER",
	0x08: "ABS_WHEEL",
	0x09: "ABS_GAS",
	0x0a: "ABS_BRAKE",
	0x10: "ABS_HAT0X",
	0x11: "ABS_HAT0Y",
	0x12: "ABS_HAT1X",
	0x13: "ABS_HAT1Y",
	0x14: "ABS_HAT2X",
	0x15: "ABS_HAT2Y",
	0x16: "ABS_HAT3X",
	0x17: "ABS_HAT3Y",
	0x18: "ABS_PRESSURE",
	0x19: "ABS_DISTANCE",
	0x1a: "ABS_TILT_X",
	0x1b: "ABS_TILT_Y",
	0x1c: "ABS_TOOL_WIDTH",
	0x20: "ABS_VOLUME",
	0x28: "ABS_MISC",
}

var buttonNames = map[uint16]string{
	0x100: "BTN_0",
	0x101: "BTN_1",
	0x102: "BTN_2",
	0x103: "BTN_3",
	0x104: "BTN_4",
	0x105: "BTN_5",
	0x106: "BTN_6",
	0x107: "BTN_7",
	0x108: "BTN_8",
	0x109: "BTN_9",

	0x120: "BTN_JOYSTICK",
	0x121: "BTN_THUMB",
	0x122: "BTN_THUMB2",
	0x123: "BTN_TOP",
	0x124: "BTN_TOP2",
	0x125: "BTN_PINKIE",
	0x126: "BTN_BASE",
	0x127: "BTN_BASE2",
	0x128: "BTN_BASE3",
	0x129: "BTN_BASE4",
	0x12a: "BTN_BASE5",
	0x12b: "BTN_BASE6",
	0x12f: "BTN_DEAD",

	0x130: "BTN_A",
	0x131: "BTN_B",
	0x132: "BTN_C",
	0x133: "BTN_NORTH",
	0x134: "BTN_WEST",
	0x135: "BTN_Z",
	0x136: "BTN_TL",
	0x137: "BTN_TR",
	0x138: "BTN_TL2",
	0x139: "BTN_TR2",
	0x13a: "BTN_SELECT",
	0x13b: "BTN_START",
	0x13c: "BTN_MODE",
	0x13d: "BTN_THUMBL",
	0x13e: "BTN_THUMBR",

	0x220: "BTN_DPAD_UP",
	0x221: "BTN_DPAD_DOWN",
	0x222: "BTN_DPAD_LEFT",
	0x223: "BTN_DPAD_RIGHT",

	0x2c0: "BTN_TRIGGER_HAPPY1",
	0x2c1: "BTN_TRIGGER_HAPPY2",
	0x2c2: "BTN_TRIGGER_HAPPY3",
	0x2c3: "BTN_TRIGGER_HAPPY4",
}

func AxisName(code uint16) string {
	if n, ok := axisNames[code]; ok {
		return n
	}
	return fmt.Sprintf("ABS_%#02x", code)
}

func ButtonName(code uint16) string {
	if n, ok := buttonNames[code]; ok {
		return n
	}
	return fmt.Sprintf("KEY_%d", code)
}
