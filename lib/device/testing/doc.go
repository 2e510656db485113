// Package testing provides a conformance suite and benchmarks for
// implementations of device.RawStore, and FaultyDevice, a wrapper that
// injects storage failures.
//
// Example usage:
//
//	devtesting.RunDeviceTests(t, "MyDevice", func(size int64) device.RawStore {
//		return NewMyDevice(size)
//	})
//
//	faulty := devtesting.NewFaultyDevice(dev)
//	faulty.FailWriteAfter(100) // power loss after 100 more bytes
package testing
