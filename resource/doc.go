// Package resource creates GPU buffers and textures on a device.
//
// Constructors take an Env naming the device, the source of copy lists and
// the view manager to notify on destruction:
//
//	env := resource.Env{Device: dev, Commands: mgr, Views: views}
//	vb, err := resource.NewVertexBuffer(env, vertices, layout)
//	cb, err := resource.NewConstantBuffer(env, 64) // 256 bytes allocated
//	err = cb.SetData(uniforms, 0)
//
// Vertex, index and texture data go through a mapped staging buffer and a
// copy list; the constructor returns after the upload's submission has
// completed. Construction is all or nothing: on failure every backend object
// created so far is released.
//
// Constant buffers stay mapped from creation until Destroy. Writes to one
// buffer from several goroutines must be serialized by the caller.
package resource
