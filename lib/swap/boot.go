package swap

import "fmt"

// DefaultFITAddr is the load address of the FIT image.
const DefaultFITAddr = 0x43200000

// BootArgument returns the bootm arguments to try in order. With a
// configuration name the first attempt selects it ("<addr>#<conf>"); the
// bare address is always tried last so the image's default configuration
// boots when the named one is missing.
func BootArgument(addr uint64, conf *string) []string {
	base := fmt.Sprintf("%x", addr)
	if conf == nil || *conf == "" {
		return []string{base}
	}
	return []string{base + "#" + *conf, base}
}

// RootCmdline returns the kernel command line that mounts the partition with
// the given UUID as root.
func RootCmdline(partUUID string) string {
	return "root=PARTUUID=" + partUUID
}
