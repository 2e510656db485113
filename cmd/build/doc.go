// Package build implements the "nvboot build" command, the provisioning side
// of the boot flow. A manifest looks like this:
//
//	layout: platform
//	name: sdb8000
//	dram:
//	  name: sdb8000-lpddr4
//	  version: "2"
//	  ...
//	entries:
//	  - key: SYS_BOOT_PART
//	    string: rootfs1
//	  - key: fsp_table
//	    u32: [3000, 400, 100, 0]
package build
