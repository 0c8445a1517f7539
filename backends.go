package rhi

// Register the built-in backends with the device registry.
import (
	_ "github.com/gogpu/rhi/device/software"
	_ "github.com/gogpu/rhi/device/wgpu"
)
