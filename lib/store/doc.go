// Package store defines the handle through which every component reads and
// mutates the NVRAM key/value store.
//
// Key Components:
//
//   - IStore Interface: Get, Has, Set and Delete work on an in-memory working
//     set; Commit makes the whole set durable as one atomic unit. Lookups
//     return the first matching entry. Set replaces only that entry, Delete
//     removes every match so a shadowed duplicate can never resurface.
//
//   - EntryList: the working set shared by the implementations. It keeps the
//     on-media order and duplicates.
//
//   - Region: a byte range of a device holding one store image.
//
// Implementations:
//
//	- Device Store (nvstore): two copies of the image on a raw device with a
//	  power-loss safe commit. Available in the
//	  "github.com/ValentinKolb/nvboot/lib/store/nvstore" package.
//
//	- Local Store (lstore): memory only, Commit persists nothing. Used for
//	  read-only blobs, dry runs and tests. Available in the
//	  "github.com/ValentinKolb/nvboot/lib/store/lstore" package.
//
// Errors are *nvram.Error values and compare with errors.Is against the
// nvram.Err* sentinels.
package store
