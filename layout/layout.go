// Package layout describes the vertex data layout of a vertex buffer.
//
// A BufferLayout is an ordered list of named elements. Offsets and the
// stride are computed once, in declaration order, when the layout is built:
//
//	l := layout.New(
//		layout.Element{Type: layout.Float3, Name: "position"},
//		layout.Element{Type: layout.Float2, Name: "uv"},
//	)
//	l.Stride() // 20
package layout

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// DataType is the semantic type of a shader input or vertex element.
type DataType uint8

// Data types.
const (
	None DataType = iota
	Float
	Float2
	Float3
	Float4
	Mat3
	Mat4
	Int
	Int2
	Int3
	Int4
	Bool
)

// Size returns the byte size of the type.
func (t DataType) Size() uint32 {
	switch t {
	case Float, Int:
		return 4
	case Float2, Int2:
		return 8
	case Float3, Int3:
		return 12
	case Float4, Int4:
		return 16
	case Mat3:
		return 4 * 3 * 3
	case Mat4:
		return 4 * 4 * 4
	case Bool:
		return 1
	}
	return 0
}

// ComponentCount returns the number of components. Matrices count their
// column vectors.
func (t DataType) ComponentCount() uint32 {
	switch t {
	case Float, Int, Bool:
		return 1
	case Float2, Int2:
		return 2
	case Float3, Int3, Mat3:
		return 3
	case Float4, Int4, Mat4:
		return 4
	}
	return 0
}

// String returns the type name.
func (t DataType) String() string {
	switch t {
	case None:
		return "None"
	case Float:
		return "Float"
	case Float2:
		return "Float2"
	case Float3:
		return "Float3"
	case Float4:
		return "Float4"
	case Mat3:
		return "Mat3"
	case Mat4:
		return "Mat4"
	case Int:
		return "Int"
	case Int2:
		return "Int2"
	case Int3:
		return "Int3"
	case Int4:
		return "Int4"
	case Bool:
		return "Bool"
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Element is one named field of a vertex record.
type Element struct {
	Name       string
	Type       DataType
	Normalized bool

	// Offset is computed by New.
	Offset uint32
}

// Size returns the byte size of the element.
func (e Element) Size() uint32 { return e.Type.Size() }

// ComponentCount returns the number of components of the element.
func (e Element) ComponentCount() uint32 { return e.Type.ComponentCount() }

// BufferLayout is an immutable ordered list of elements with computed
// offsets.
type BufferLayout struct {
	elements []Element
	stride   uint32
}

// New builds a layout. Each element's Offset is set to the sum of the sizes
// of the elements before it.
func New(elements ...Element) BufferLayout {
	l := BufferLayout{elements: make([]Element, len(elements))}
	var offset uint32
	for i, e := range elements {
		e.Offset = offset
		offset += e.Size()
		l.elements[i] = e
	}
	l.stride = offset
	return l
}

// Stride returns the byte size of one vertex record.
func (l BufferLayout) Stride() uint32 { return l.stride }

// Len returns the number of elements.
func (l BufferLayout) Len() int { return len(l.elements) }

// Elements returns a copy of the elements in declaration order.
func (l BufferLayout) Elements() []Element {
	out := make([]Element, len(l.elements))
	copy(out, l.elements)
	return out
}

// Element returns the element named name.
func (l BufferLayout) Element(name string) (Element, bool) {
	for _, e := range l.elements {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// VertexBufferLayout converts the layout to a gputypes vertex buffer layout
// with shader locations assigned in declaration order, starting at
// firstLocation. Matrices occupy one location per column. Bool and None
// elements have no vertex format and are rejected.
func (l BufferLayout) VertexBufferLayout(firstLocation uint32) (gputypes.VertexBufferLayout, error) {
	attrs := make([]gputypes.VertexAttribute, 0, len(l.elements))
	location := firstLocation
	for _, e := range l.elements {
		format, columns, err := vertexFormat(e)
		if err != nil {
			return gputypes.VertexBufferLayout{}, err
		}
		columnSize := e.Size() / columns
		for c := range columns {
			attrs = append(attrs, gputypes.VertexAttribute{
				Format:         format,
				Offset:         uint64(e.Offset + c*columnSize),
				ShaderLocation: location,
			})
			location++
		}
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(l.stride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}, nil
}

func vertexFormat(e Element) (gputypes.VertexFormat, uint32, error) {
	switch e.Type {
	case Float:
		return gputypes.VertexFormatFloat32, 1, nil
	case Float2:
		return gputypes.VertexFormatFloat32x2, 1, nil
	case Float3:
		return gputypes.VertexFormatFloat32x3, 1, nil
	case Float4:
		return gputypes.VertexFormatFloat32x4, 1, nil
	case Mat3:
		return gputypes.VertexFormatFloat32x3, 3, nil
	case Mat4:
		return gputypes.VertexFormatFloat32x4, 4, nil
	case Int:
		return gputypes.VertexFormatSint32, 1, nil
	case Int2:
		return gputypes.VertexFormatSint32x2, 1, nil
	case Int3:
		return gputypes.VertexFormatSint32x3, 1, nil
	case Int4:
		return gputypes.VertexFormatSint32x4, 1, nil
	}
	return 0, 0, fmt.Errorf("layout: element %q of type %v has no vertex format", e.Name, e.Type)
}
