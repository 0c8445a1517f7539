package device

import (
	"errors"
	"testing"
)

func TestAPICheck(t *testing.T) {
	tests := []struct {
		api     API
		wantErr error
	}{
		{APINone, ErrAPINotSet},
		{APISoftware, nil},
		{APINoop, nil},
		{APIVulkan, nil},
		{API(42), ErrUnknownAPI},
		{API(-1), ErrUnknownAPI},
	}
	for _, tt := range tests {
		t.Run(tt.api.String(), func(t *testing.T) {
			err := tt.api.Check()
			if !errors.Is(err, tt.wantErr) && !(err == nil && tt.wantErr == nil) {
				t.Errorf("Check() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseAPI(t *testing.T) {
	for _, api := range []API{APINone, APISoftware, APINoop, APIVulkan} {
		got, err := ParseAPI(api.String())
		if err != nil {
			t.Fatalf("ParseAPI(%q) error: %v", api.String(), err)
		}
		if got != api {
			t.Errorf("ParseAPI(%q) = %v, want %v", api.String(), got, api)
		}
	}
	if _, err := ParseAPI("d3d9"); !errors.Is(err, ErrUnknownAPI) {
		t.Errorf("ParseAPI(d3d9) error = %v, want ErrUnknownAPI", err)
	}

	var a API
	if err := a.UnmarshalText([]byte(" Vulkan ")); err != nil || a != APIVulkan {
		t.Errorf("UnmarshalText = %v, %v; want vulkan", a, err)
	}
}

type stubDevice struct {
	Device
	api API
}

func (d *stubDevice) API() API { return d.api }

func TestRegistryOpen(t *testing.T) {
	const api = APIVulkan
	t.Cleanup(func() { Unregister(api) })

	if _, err := Open(APINone, Options{}); !errors.Is(err, ErrAPINotSet) {
		t.Errorf("Open(none) error = %v, want ErrAPINotSet", err)
	}
	if _, err := Open(API(99), Options{}); !errors.Is(err, ErrUnknownAPI) {
		t.Errorf("Open(99) error = %v, want ErrUnknownAPI", err)
	}

	Unregister(api)
	if _, err := Open(api, Options{}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(unregistered) error = %v, want ErrBackendNotAvailable", err)
	}

	Register(api, func(Options) (Device, error) { return &stubDevice{api: api}, nil })
	if !IsRegistered(api) {
		t.Fatal("IsRegistered = false after Register")
	}
	dev, err := Open(api, Options{})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if dev.API() != api {
		t.Errorf("API() = %v, want %v", dev.API(), api)
	}

	failure := errors.New("driver rejected device")
	Register(api, func(Options) (Device, error) { return nil, failure })
	if _, err := Open(api, Options{}); !errors.Is(err, failure) {
		t.Errorf("Open error = %v, want wrapped factory error", err)
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct{ n, align, want uint64 }{
		{0, 256, 0},
		{1, 256, 256},
		{64, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{13, 4, 16},
		{13, 0, 13},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestHandle(t *testing.T) {
	var zero Handle
	if !zero.IsZero() {
		t.Error("zero Handle is not IsZero")
	}
	h := NewHandle(APISoftware, 7, nil)
	if h.IsZero() || h.API() != APISoftware || h.ID() != 7 || h.Object() != nil {
		t.Errorf("NewHandle fields = %v/%d/%v", h.API(), h.ID(), h.Object())
	}
}

func TestMipExtent(t *testing.T) {
	if got := MipExtent(256, 3); got != 32 {
		t.Errorf("MipExtent(256, 3) = %d, want 32", got)
	}
	if got := MipExtent(5, 4); got != 1 {
		t.Errorf("MipExtent(5, 4) = %d, want 1", got)
	}
	if got := MipLevelCount(256, 64); got != 9 {
		t.Errorf("MipLevelCount(256, 64) = %d, want 9", got)
	}
	if got := MipLevelCount(1, 1); got != 1 {
		t.Errorf("MipLevelCount(1, 1) = %d, want 1", got)
	}
}
