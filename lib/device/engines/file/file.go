package file

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/nvram"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("device")

// fileImpl is a device backed by an image file or a block device node.
type fileImpl struct {
	path string
	f    *os.File
	size int64
}

// Options configures how a file device is opened.
type Options struct {
	// Size of the device. When the file is smaller it is extended with erased
	// (0xFF) bytes, when it is larger only the first Size bytes are used.
	// 0 means the current file size.
	Size int64
	// Create allows creating a missing file. Size must then be set.
	Create bool
	// ReadOnly opens the file without write access.
	ReadOnly bool
}

// Metadata is returned in device.Info.
type Metadata struct {
	Path     string `json:"path" yaml:"path"`
	FileSize int64  `json:"file_size" yaml:"file_size"`
}

// OpenFileDevice opens the image at path. opts may be nil.
func OpenFileDevice(path string, opts *Options) (device.RawStore, error) {
	if opts == nil {
		opts = &Options{}
	}

	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	} else if opts.Create {
		flag |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, device.IOError("open", err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, device.IOError("stat", err)
	}

	size := opts.Size
	if size == 0 {
		size = st.Size()
	}
	if size == 0 {
		_ = f.Close()
		return nil, nvram.NewError(nvram.RetCStorageIO, "open", fmt.Sprintf("%s: device size is zero", path))
	}

	if st.Mode().IsRegular() && st.Size() < size {
		if opts.ReadOnly {
			_ = f.Close()
			return nil, nvram.NewError(nvram.RetCStorageIO, "open",
				fmt.Sprintf("%s: file has %d bytes, need %d", path, st.Size(), size))
		}
		if err := extend(f, st.Size(), size); err != nil {
			_ = f.Close()
			return nil, device.IOError("extend", err)
		}
		log.Infof("extended %s from %d to %d bytes", path, st.Size(), size)
	}

	return &fileImpl{path: path, f: f, size: size}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see device.RawStore)
// --------------------------------------------------------------------------

func (d *fileImpl) ReadAt(p []byte, off int64) (int, error) {
	if err := device.CheckBounds(d.size, off, len(p)); err != nil {
		return 0, err
	}
	n, err := d.f.ReadAt(p, off)
	if err != nil {
		return n, device.IOError("read", err)
	}
	return n, nil
}

func (d *fileImpl) WriteAt(p []byte, off int64) (int, error) {
	if err := device.CheckBounds(d.size, off, len(p)); err != nil {
		return 0, err
	}
	n, err := d.f.WriteAt(p, off)
	if err != nil {
		return n, device.IOError("write", err)
	}
	return n, nil
}

func (d *fileImpl) Sync() error {
	if err := d.f.Sync(); err != nil {
		return device.IOError("sync", err)
	}
	return nil
}

func (d *fileImpl) Size() int64 {
	return d.size
}

func (d *fileImpl) Info() device.Info {
	meta := Metadata{Path: d.path}
	if st, err := d.f.Stat(); err == nil {
		meta.FileSize = st.Size()
	}
	return device.Info{
		SizeBytes: d.size,
		Type:      device.ImplFile,
		Metadata:  meta,
	}
}

func (d *fileImpl) Close() error {
	if err := d.f.Close(); err != nil {
		return device.IOError("close", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// extend appends erased bytes to f until it is size bytes long.
func extend(f *os.File, from, size int64) error {
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	for i := range buf {
		buf[i] = 0xff
	}
	for off := from; off < size; off += chunk {
		n := min(chunk, size-off)
		if _, err := f.WriteAt(buf[:n], off); err != nil {
			return err
		}
	}
	return f.Sync()
}
