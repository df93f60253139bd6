package layout

import "fmt"

// Target describes the pointer properties of the runtime the snapshot was
// taken from.
type Target struct {
	Triple   string // e.g. "aarch64-linux-android"
	PtrSize  uint32 // bytes
	PtrAlign uint8  // bytes
}

func AArch64Android() Target {
	return Target{
		Triple:   "aarch64-linux-android",
		PtrSize:  8,
		PtrAlign: 8,
	}
}

func ARMv7Android() Target {
	return Target{
		Triple:   "armv7-linux-androideabi",
		PtrSize:  4,
		PtrAlign: 4,
	}
}

// TargetForPointerSize picks the target matching a pointer width.
func TargetForPointerSize(n int) (Target, error) {
	switch n {
	case 0, 8:
		return AArch64Android(), nil
	case 4:
		return ARMv7Android(), nil
	}
	return Target{}, fmt.Errorf("unsupported pointer size %d (expected 4 or 8)", n)
}

// HeaderSize is the size of the object header preceding instance fields:
// the class pointer and the monitor.
func (t Target) HeaderSize() uint32 {
	return 2 * t.PtrSize
}
