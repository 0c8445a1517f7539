// Package rhi is a render hardware interface: a backend-agnostic layer for
// GPU command submission and GPU-resident resources.
//
// # Quick Start
//
//	ctx, err := rhi.NewContext(rhi.WithAPI(rhi.APISoftware))
//	if err != nil {
//		return err
//	}
//	defer ctx.Close()
//
//	cb, err := resource.NewConstantBuffer(ctx.Env(), 64)
//	if err != nil {
//		return err
//	}
//	defer cb.Destroy()
//	view, err := ctx.Views().View(cb, descriptor.ViewCBV)
//
// # Backends
//
// Two execution models sit behind the device interfaces:
//   - software: host memory, copies executed in order by a queue goroutine
//   - noop and vulkan: gogpu/wgpu HAL devices with command encoders,
//     queue submission and fences
//
// A Context can also adopt an existing device with WithDevice, for example
// one built from a gpucontext.DeviceProvider by wgpu.FromProvider.
//
// # Architecture
//
// The module is organized into:
//   - device: capability interfaces and the backend registry
//   - command: command lists, pools and scoped checkout
//   - resource: vertex, index and constant buffers, textures
//   - descriptor: descriptor heaps and the view manager
//   - shader: stage reflection, SPIR-V reflector and WGSL compilation
//   - layout: vertex buffer layouts
//
// # Logging
//
// rhi is silent by default. SetLogger installs a process default logger and
// WithLogger sets one per Context.
package rhi
