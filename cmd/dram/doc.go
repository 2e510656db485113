// Package dram implements the "nvboot dram" command which runs the DRAM
// configuration load against a device image.
package dram
