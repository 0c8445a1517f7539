package device

// Handle is a backend-native object reference tagged with the backend that
// produced it. The tag is fixed when the handle is created, so callers switch
// on API once instead of probing the payload.
//
// Software objects carry a numeric ID. wgpu objects carry the hal object in
// Object and a device-unique ID.
type Handle struct {
	api    API
	id     uint64
	object any
}

// NewHandle creates a tagged native handle.
func NewHandle(api API, id uint64, object any) Handle {
	return Handle{api: api, id: id, object: object}
}

// API returns the backend tag.
func (h Handle) API() API { return h.api }

// ID returns the backend-assigned numeric identity.
func (h Handle) ID() uint64 { return h.id }

// Object returns the backend object, or nil for backends without one.
func (h Handle) Object() any { return h.object }

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h.api == APINone && h.id == 0 && h.object == nil
}
