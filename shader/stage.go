package shader

import "fmt"

// Stage is a programmable pipeline stage.
type Stage uint8

// Shader stages. Pixel is the fragment stage, Hull and Domain are the
// tessellation control and evaluation stages.
const (
	StageVertex Stage = iota
	StagePixel
	StageGeometry
	StageHull
	StageDomain
	StageCompute

	stageCount
)

// Stages lists every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageVertex, StagePixel, StageGeometry, StageHull, StageDomain, StageCompute}
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool { return s < stageCount }

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StagePixel:
		return "Pixel"
	case StageGeometry:
		return "Geometry"
	case StageHull:
		return "Hull"
	case StageDomain:
		return "Domain"
	case StageCompute:
		return "Compute"
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// executionModel returns the SPIR-V execution model of the stage.
func (s Stage) executionModel() uint32 {
	switch s {
	case StageVertex:
		return execModelVertex
	case StagePixel:
		return execModelFragment
	case StageGeometry:
		return execModelGeometry
	case StageHull:
		return execModelTessControl
	case StageDomain:
		return execModelTessEval
	case StageCompute:
		return execModelGLCompute
	}
	return ^uint32(0)
}

// BindingType is the kind of resource a binding refers to.
type BindingType uint8

// Binding types.
const (
	BindingConstantBuffer BindingType = iota
	BindingShaderResource
	BindingUnorderedAccess
	BindingSampler
)

// String returns the binding type name.
func (t BindingType) String() string {
	switch t {
	case BindingConstantBuffer:
		return "ConstantBuffer"
	case BindingShaderResource:
		return "ShaderResource"
	case BindingUnorderedAccess:
		return "UnorderedAccess"
	case BindingSampler:
		return "Sampler"
	}
	return fmt.Sprintf("BindingType(%d)", uint8(t))
}
