package shader

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gogpu/rhi/layout"
)

// spirvBuilder assembles SPIR-V modules for tests.
type spirvBuilder struct {
	words []uint32
}

func newSPIRVBuilder() *spirvBuilder {
	return &spirvBuilder{words: []uint32{spirvMagic, 0x00010000, 0, 64, 0}}
}

func (b *spirvBuilder) op(code uint32, operands ...uint32) *spirvBuilder {
	b.words = append(b.words, uint32(len(operands)+1)<<16|code)
	b.words = append(b.words, operands...)
	return b
}

func (b *spirvBuilder) named(code, id uint32, name string, extra ...uint32) *spirvBuilder {
	operands := append([]uint32{id}, extra...)
	return b.op(code, append(operands, str(name)...)...)
}

func str(s string) []uint32 {
	buf := append([]byte(s), 0)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}

const (
	idFloat = iota + 1
	idVec4
	idMat4
	idVec3
	idVec2
	idCamera
	idPtrCamera
	idCameraVar
	idImage
	idPtrImage
	idTexVar
	idSampler
	idPtrSampler
	idSamplerVar
	idPtrInVec3
	idPosVar
	idPtrInVec2
	idUVVar
	idRuntimeArr
	idParticles
	idPtrParticles
	idParticlesVar
	idMain
	idVoid
	idFnType
	idUint
	idFour
	idLightArr
	idLights
	idPtrLights
	idLightsVar
	idPtrInBuiltin
	idVertexIndex
)

// spriteModule returns a vertex shader module with a uniform block, a
// texture, a sampler, a read-only storage buffer, a uniform array block
// and two vertex inputs plus a built-in input.
func spriteModule() []uint32 {
	b := newSPIRVBuilder()
	entry := append([]uint32{execModelVertex, idMain}, str("vs_main")...)
	entry = append(entry, idPosVar, idUVVar, idVertexIndex)
	b.op(opEntryPoint, entry...)

	b.named(opName, idCamera, "Camera")
	b.named(opMemberName, idCamera, "viewProj", 0)
	b.named(opMemberName, idCamera, "time", 1)
	b.named(opName, idCameraVar, "camera")
	b.named(opName, idTexVar, "albedo")
	b.named(opName, idSamplerVar, "linearSampler")
	b.named(opName, idPosVar, "position")
	b.named(opName, idUVVar, "uv")
	b.named(opName, idParticlesVar, "particles")
	b.named(opName, idLights, "Lights")
	b.named(opMemberName, idLights, "colors", 0)

	b.op(opDecorate, idCamera, decorBlock)
	b.op(opMemberDecorate, idCamera, 0, decorOffset, 0)
	b.op(opMemberDecorate, idCamera, 0, decorMatrixStride, 16)
	b.op(opMemberDecorate, idCamera, 1, decorOffset, 64)
	b.op(opDecorate, idCameraVar, decorDescriptorSet, 0)
	b.op(opDecorate, idCameraVar, decorBinding, 0)
	b.op(opDecorate, idTexVar, decorDescriptorSet, 0)
	b.op(opDecorate, idTexVar, decorBinding, 1)
	b.op(opDecorate, idSamplerVar, decorDescriptorSet, 0)
	b.op(opDecorate, idSamplerVar, decorBinding, 2)
	b.op(opDecorate, idPosVar, decorLocation, 0)
	b.op(opDecorate, idUVVar, decorLocation, 1)
	b.op(opDecorate, idVertexIndex, decorBuiltIn, 42)
	b.op(opDecorate, idParticles, decorBlock)
	b.op(opMemberDecorate, idParticles, 0, decorOffset, 0)
	b.op(opMemberDecorate, idParticles, 0, decorNonWritable)
	b.op(opDecorate, idRuntimeArr, decorArrayStride, 16)
	b.op(opDecorate, idParticlesVar, decorDescriptorSet, 1)
	b.op(opDecorate, idParticlesVar, decorBinding, 0)
	b.op(opDecorate, idLightArr, decorArrayStride, 16)
	b.op(opDecorate, idLights, decorBlock)
	b.op(opMemberDecorate, idLights, 0, decorOffset, 0)
	b.op(opDecorate, idLightsVar, decorDescriptorSet, 0)
	b.op(opDecorate, idLightsVar, decorBinding, 3)

	b.op(opTypeVoid, idVoid)
	b.op(33, idFnType, idVoid) // OpTypeFunction
	b.op(opTypeFloat, idFloat, 32)
	b.op(opTypeInt, idUint, 32, 0)
	b.op(opConstant, idUint, idFour, 4)
	b.op(opTypeVector, idVec4, idFloat, 4)
	b.op(opTypeVector, idVec3, idFloat, 3)
	b.op(opTypeVector, idVec2, idFloat, 2)
	b.op(opTypeMatrix, idMat4, idVec4, 4)
	b.op(opTypeStruct, idCamera, idMat4, idFloat)
	b.op(opTypePointer, idPtrCamera, storageUniform, idCamera)
	b.op(opVariable, idPtrCamera, idCameraVar, storageUniform)
	b.op(opTypeImage, idImage, idFloat, 1, 0, 0, 0, 1, 0)
	b.op(opTypePointer, idPtrImage, storageUniformConst, idImage)
	b.op(opVariable, idPtrImage, idTexVar, storageUniformConst)
	b.op(opTypeSampler, idSampler)
	b.op(opTypePointer, idPtrSampler, storageUniformConst, idSampler)
	b.op(opVariable, idPtrSampler, idSamplerVar, storageUniformConst)
	b.op(opTypePointer, idPtrInVec3, storageInput, idVec3)
	b.op(opVariable, idPtrInVec3, idPosVar, storageInput)
	b.op(opTypePointer, idPtrInVec2, storageInput, idVec2)
	b.op(opVariable, idPtrInVec2, idUVVar, storageInput)
	b.op(opTypePointer, idPtrInBuiltin, storageInput, idUint)
	b.op(opVariable, idPtrInBuiltin, idVertexIndex, storageInput)
	b.op(opTypeRuntimeArray, idRuntimeArr, idVec4)
	b.op(opTypeStruct, idParticles, idRuntimeArr)
	b.op(opTypePointer, idPtrParticles, storageStorageBuf, idParticles)
	b.op(opVariable, idPtrParticles, idParticlesVar, storageStorageBuf)
	b.op(opTypeArray, idLightArr, idVec4, idFour)
	b.op(opTypeStruct, idLights, idLightArr)
	b.op(opTypePointer, idPtrLights, storageUniform, idLights)
	b.op(opVariable, idPtrLights, idLightsVar, storageUniform)

	b.op(opFunction, idVoid, idMain, 0, idFnType)
	// Junk after the first function must be ignored.
	b.op(opVariable, 9999, 9998, storageUniform)
	return b.words
}

func TestReflectSPIRV(t *testing.T) {
	r, err := ReflectSPIRV(StageVertex, spriteModule())
	if err != nil {
		t.Fatalf("ReflectSPIRV error: %v", err)
	}

	if len(r.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(r.Blocks))
	}
	cam, ok := r.RegisterBlockByName("Camera")
	if !ok {
		t.Fatal("Camera block not found")
	}
	if cam.BindPoint != 0 || cam.BindSpace != 0 || cam.Size != 68 {
		t.Errorf("Camera = point %d space %d size %d, want 0 0 68", cam.BindPoint, cam.BindSpace, cam.Size)
	}
	wantParams := []Parameter{{Name: "viewProj", Size: 64, Offset: 0}, {Name: "time", Size: 4, Offset: 64}}
	if len(cam.Parameters) != len(wantParams) {
		t.Fatalf("Camera parameters = %+v", cam.Parameters)
	}
	for i, p := range wantParams {
		if cam.Parameters[i] != p {
			t.Errorf("parameter %d = %+v, want %+v", i, cam.Parameters[i], p)
		}
	}
	lights, ok := r.RegisterBlockByBindPoint(3, 0)
	if !ok || lights.Name != "Lights" || lights.Size != 64 {
		t.Errorf("block at (3, 0) = %+v, %v; want Lights of 64 bytes", lights, ok)
	}

	wantBindings := map[string]ResourceBinding{
		"camera":        {Name: "camera", Type: BindingConstantBuffer, BindPoint: 0, BindSpace: 0, BlockIndex: 0},
		"albedo":        {Name: "albedo", Type: BindingShaderResource, BindPoint: 1, BindSpace: 0, BlockIndex: NoBlock},
		"linearSampler": {Name: "linearSampler", Type: BindingSampler, BindPoint: 2, BindSpace: 0, BlockIndex: NoBlock},
		"particles":     {Name: "particles", Type: BindingShaderResource, BindPoint: 0, BindSpace: 1, BlockIndex: NoBlock},
	}
	for name, want := range wantBindings {
		got, ok := r.BindingByName(name)
		if !ok {
			t.Errorf("binding %q not found", name)
			continue
		}
		if got != want {
			t.Errorf("binding %q = %+v, want %+v", name, got, want)
		}
	}

	wantInputs := []VertexInput{
		{Name: "position", Location: 0, Type: layout.Float3},
		{Name: "uv", Location: 1, Type: layout.Float2},
	}
	if len(r.Inputs) != len(wantInputs) {
		t.Fatalf("Inputs = %+v, want %+v", r.Inputs, wantInputs)
	}
	for i, in := range wantInputs {
		if r.Inputs[i] != in {
			t.Errorf("input %d = %+v, want %+v", i, r.Inputs[i], in)
		}
	}
}

func TestReflectSPIRVErrors(t *testing.T) {
	if _, err := ReflectSPIRV(StagePixel, spriteModule()); !errors.Is(err, ErrNoEntryPoint) {
		t.Errorf("pixel stage error = %v, want ErrNoEntryPoint", err)
	}
	if _, err := ReflectSPIRV(StageVertex, []uint32{1, 2, 3, 4, 5}); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("bad magic error = %v, want ErrInvalidSPIRV", err)
	}
	if _, err := ReflectSPIRV(StageVertex, nil); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("empty module error = %v, want ErrInvalidSPIRV", err)
	}
	truncated := spriteModule()[:7]
	if _, err := ReflectSPIRV(StageVertex, truncated); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("truncated module error = %v, want ErrInvalidSPIRV", err)
	}
	if _, err := WordsFromBytes([]byte{1, 2, 3}); !errors.Is(err, ErrInvalidSPIRV) {
		t.Errorf("WordsFromBytes error = %v, want ErrInvalidSPIRV", err)
	}
}

func TestReflectSPIRVBytes(t *testing.T) {
	words := spriteModule()
	code := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[i*4:], w)
	}
	r, err := ReflectSPIRVBytes(StageVertex, code)
	if err != nil {
		t.Fatalf("ReflectSPIRVBytes error: %v", err)
	}
	if len(r.Bindings) != 5 {
		t.Errorf("len(Bindings) = %d, want 5", len(r.Bindings))
	}

	// Big-endian binaries are accepted as well.
	swapped := make([]byte, len(code))
	for i, w := range words {
		binary.BigEndian.PutUint32(swapped[i*4:], w)
	}
	if _, err := ReflectSPIRVBytes(StageVertex, swapped); err != nil {
		t.Errorf("big-endian module error: %v", err)
	}
}

func TestDecodeString(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "abcd", "vs_main"} {
		if got := decodeString(str(s)); got != s {
			t.Errorf("decodeString(str(%q)) = %q", s, got)
		}
	}
}
