package oracle

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
	ARCH_X86
	ARCH_X86_64
)

func (a Arch) PointerSize() (uint64, error) {
	switch a {
	case ARCH_ARM, ARCH_X86:
		return 4, nil
	case ARCH_ARM64, ARCH_X86_64:
		return 8, nil
	}
	return 0, ErrArchUnsupported
}

func (a Arch) String() string {
	switch a {
	case ARCH_ARM:
		return "arm"
	case ARCH_ARM64:
		return "arm64"
	case ARCH_X86:
		return "x86"
	case ARCH_X86_64:
		return "x86_64"
	}
	return "unknown"
}

func ParseArch(name string) (Arch, error) {
	switch name {
	case "arm":
		return ARCH_ARM, nil
	case "arm64", "aarch64":
		return ARCH_ARM64, nil
	case "x86", "i386", "386":
		return ARCH_X86, nil
	case "x86_64", "amd64":
		return ARCH_X86_64, nil
	}
	return ARCH_UNKNOWN, ErrArchUnsupported
}
