package layout

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		typ        DataType
		size       uint32
		components uint32
	}{
		{None, 0, 0},
		{Float, 4, 1},
		{Float2, 8, 2},
		{Float3, 12, 3},
		{Float4, 16, 4},
		{Mat3, 36, 3},
		{Mat4, 64, 4},
		{Int, 4, 1},
		{Int2, 8, 2},
		{Int3, 12, 3},
		{Int4, 16, 4},
		{Bool, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.Size(); got != tt.size {
				t.Errorf("Size() = %d, want %d", got, tt.size)
			}
			if got := tt.typ.ComponentCount(); got != tt.components {
				t.Errorf("ComponentCount() = %d, want %d", got, tt.components)
			}
		})
	}
}

func TestPositionUVLayout(t *testing.T) {
	l := New(
		Element{Type: Float3, Name: "position"},
		Element{Type: Float2, Name: "uv"},
	)
	if l.Stride() != 20 {
		t.Errorf("Stride() = %d, want 20", l.Stride())
	}
	elems := l.Elements()
	if len(elems) != 2 || elems[0].Offset != 0 || elems[1].Offset != 12 {
		t.Fatalf("offsets = %+v, want [0 12]", elems)
	}

	uv, ok := l.Element("uv")
	if !ok || uv.Offset != 12 || uv.Size() != 8 {
		t.Errorf("Element(uv) = %+v, %v", uv, ok)
	}
	if _, ok := l.Element("normal"); ok {
		t.Error("Element(normal) found in layout without normals")
	}

	elems[0].Offset = 99
	if l.Elements()[0].Offset != 0 {
		t.Error("Elements() exposes internal storage")
	}
}

func TestEmptyLayout(t *testing.T) {
	l := New()
	if l.Stride() != 0 || l.Len() != 0 {
		t.Errorf("empty layout stride=%d len=%d", l.Stride(), l.Len())
	}
}

func TestVertexBufferLayout(t *testing.T) {
	l := New(
		Element{Type: Float3, Name: "position"},
		Element{Type: Mat4, Name: "model"},
		Element{Type: Int, Name: "id"},
	)
	vbl, err := l.VertexBufferLayout(0)
	if err != nil {
		t.Fatalf("VertexBufferLayout error: %v", err)
	}
	if vbl.ArrayStride != 12+64+4 {
		t.Errorf("ArrayStride = %d, want 80", vbl.ArrayStride)
	}
	if vbl.StepMode != gputypes.VertexStepModeVertex {
		t.Errorf("StepMode = %v, want vertex", vbl.StepMode)
	}
	if len(vbl.Attributes) != 6 {
		t.Fatalf("len(Attributes) = %d, want 6", len(vbl.Attributes))
	}
	wantOffsets := []uint64{0, 12, 28, 44, 60, 76}
	for i, a := range vbl.Attributes {
		if a.Offset != wantOffsets[i] || a.ShaderLocation != uint32(i) {
			t.Errorf("attribute %d = offset %d location %d, want %d %d", i, a.Offset, a.ShaderLocation, wantOffsets[i], i)
		}
	}
	if vbl.Attributes[1].Format != gputypes.VertexFormatFloat32x4 {
		t.Errorf("matrix column format = %v, want Float32x4", vbl.Attributes[1].Format)
	}

	if _, err := New(Element{Type: Bool, Name: "flag"}).VertexBufferLayout(0); err == nil {
		t.Error("Bool element converted to a vertex format")
	}
}
