package shader

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"

	"github.com/gogpu/rhi/layout"
)

// SPIR-V constants used by the reflector.
const (
	spirvMagic = 0x07230203

	opName              = 5
	opMemberName        = 6
	opEntryPoint        = 15
	opTypeVoid          = 19
	opTypeBool          = 20
	opTypeInt           = 21
	opTypeFloat         = 22
	opTypeVector        = 23
	opTypeMatrix        = 24
	opTypeImage         = 25
	opTypeSampler       = 26
	opTypeSampledImage  = 27
	opTypeArray         = 28
	opTypeRuntimeArray  = 29
	opTypeStruct        = 30
	opTypePointer       = 32
	opConstant          = 43
	opVariable          = 59
	opDecorate          = 71
	opMemberDecorate    = 72
	opFunction          = 54
	decorBlock          = 2
	decorBufferBlock    = 3
	decorArrayStride    = 6
	decorMatrixStride   = 7
	decorBuiltIn        = 11
	decorNonWritable    = 24
	decorLocation       = 30
	decorBinding        = 33
	decorDescriptorSet  = 34
	decorOffset         = 35
	storageUniformConst = 0
	storageInput        = 1
	storageUniform      = 2
	storagePushConstant = 9
	storageStorageBuf   = 12

	execModelVertex      = 0
	execModelTessControl = 1
	execModelTessEval    = 2
	execModelGeometry    = 3
	execModelFragment    = 4
	execModelGLCompute   = 5
)

// spvType is a reflected SPIR-V type.
type spvType struct {
	op      uint32
	width   uint32 // int and float bit width
	signed  bool
	elem    uint32 // vector, matrix, array, runtime array, pointer, sampled image
	count   uint32 // vector components, matrix columns, array length id
	members []uint32
	storage uint32 // pointer storage class
	sampled uint32 // image: 1 sampled, 2 storage
}

// decorations collected for one id or struct member.
type decorations struct {
	block, bufferBlock, nonWritable bool
	builtIn                         bool
	binding, set, location          *uint32
	offset                          *uint32
	arrayStride, matrixStride       uint32
}

type memberKey struct{ id, member uint32 }

type entryPoint struct {
	model uint32
	name  string
	iface []uint32
}

type variable struct {
	id, typ, storage uint32
}

// module is a parsed SPIR-V module, limited to the instructions before the
// first function.
type module struct {
	names       map[uint32]string
	memberNames map[memberKey]string
	decor       map[uint32]*decorations
	memberDecor map[memberKey]*decorations
	types       map[uint32]*spvType
	constants   map[uint32]uint32
	variables   []variable
	entries     []entryPoint
}

// ReflectSPIRVBytes reflects a little-endian SPIR-V binary.
func ReflectSPIRVBytes(stage Stage, code []byte) (*StageReflection, error) {
	words, err := WordsFromBytes(code)
	if err != nil {
		return nil, err
	}
	return ReflectSPIRV(stage, words)
}

// WordsFromBytes converts a little-endian SPIR-V binary to words.
func WordsFromBytes(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrInvalidSPIRV, len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// ReflectSPIRV reflects the interface of a SPIR-V module for one stage.
//
// Uniform blocks become constant buffer register blocks. Storage buffers are
// unordered-access bindings unless every member is NonWritable, in which
// case they are shader resources. Sampled images are shader resources and
// storage images unordered-access. DescriptorSet maps to the bind space and
// Binding to the bind point. Vertex inputs are the Location-decorated Input
// variables of the stage's entry point.
//
// Blocks are named after their struct type and bindings after their
// variable, each falling back to the other when unnamed.
func ReflectSPIRV(stage Stage, words []uint32) (*StageReflection, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("shader: invalid stage %v", stage)
	}
	m, err := parseModule(words)
	if err != nil {
		return nil, err
	}

	var entry *entryPoint
	model := stage.executionModel()
	for i := range m.entries {
		if m.entries[i].model == model {
			entry = &m.entries[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, stage)
	}

	r := &StageReflection{Stage: stage}
	for _, v := range m.variables {
		if err := m.reflectVariable(r, entry, v); err != nil {
			return nil, err
		}
	}
	slices.SortFunc(r.Inputs, func(a, b VertexInput) int { return int(a.Location) - int(b.Location) })
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func parseModule(words []uint32) (*module, error) {
	if len(words) < 5 {
		return nil, fmt.Errorf("%w: %d words", ErrInvalidSPIRV, len(words))
	}
	if words[0] != spirvMagic {
		if bits.ReverseBytes32(words[0]) == spirvMagic {
			swapped := make([]uint32, len(words))
			for i, w := range words {
				swapped[i] = bits.ReverseBytes32(w)
			}
			words = swapped
		} else {
			return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidSPIRV, words[0])
		}
	}

	m := &module{
		names:       make(map[uint32]string),
		memberNames: make(map[memberKey]string),
		decor:       make(map[uint32]*decorations),
		memberDecor: make(map[memberKey]*decorations),
		types:       make(map[uint32]*spvType),
		constants:   make(map[uint32]uint32),
	}

	for pos := 5; pos < len(words); {
		count := int(words[pos] >> 16)
		op := words[pos] & 0xffff
		if count == 0 || pos+count > len(words) {
			return nil, fmt.Errorf("%w: bad instruction length at word %d", ErrInvalidSPIRV, pos)
		}
		ops := words[pos+1 : pos+count]
		pos += count

		if op == opFunction {
			break
		}
		if err := m.parseInstruction(op, ops); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *module) parseInstruction(op uint32, ops []uint32) error {
	need := func(n int) error {
		if len(ops) < n {
			return fmt.Errorf("%w: opcode %d has %d operands, want at least %d", ErrInvalidSPIRV, op, len(ops), n)
		}
		return nil
	}

	switch op {
	case opName:
		if err := need(1); err != nil {
			return err
		}
		m.names[ops[0]] = decodeString(ops[1:])
	case opMemberName:
		if err := need(2); err != nil {
			return err
		}
		m.memberNames[memberKey{ops[0], ops[1]}] = decodeString(ops[2:])
	case opEntryPoint:
		if err := need(3); err != nil {
			return err
		}
		name := decodeString(ops[2:])
		n := (len(name) + 4) / 4
		m.entries = append(m.entries, entryPoint{
			model: ops[0],
			name:  name,
			iface: slices.Clone(ops[2+n:]),
		})
	case opDecorate:
		if err := need(2); err != nil {
			return err
		}
		applyDecoration(m.decorFor(ops[0]), ops[1], ops[2:])
	case opMemberDecorate:
		if err := need(3); err != nil {
			return err
		}
		applyDecoration(m.memberDecorFor(ops[0], ops[1]), ops[2], ops[3:])
	case opTypeVoid, opTypeBool, opTypeSampler:
		if err := need(1); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op}
	case opTypeInt:
		if err := need(3); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, width: ops[1], signed: ops[2] == 1}
	case opTypeFloat:
		if err := need(2); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, width: ops[1]}
	case opTypeVector, opTypeMatrix, opTypeArray:
		if err := need(3); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, elem: ops[1], count: ops[2]}
	case opTypeImage:
		if err := need(8); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, elem: ops[1], sampled: ops[6]}
	case opTypeSampledImage, opTypeRuntimeArray:
		if err := need(2); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, elem: ops[1]}
	case opTypeStruct:
		if err := need(1); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, members: slices.Clone(ops[1:])}
	case opTypePointer:
		if err := need(3); err != nil {
			return err
		}
		m.types[ops[0]] = &spvType{op: op, storage: ops[1], elem: ops[2]}
	case opConstant:
		if err := need(3); err != nil {
			return err
		}
		m.constants[ops[1]] = ops[2]
	case opVariable:
		if err := need(3); err != nil {
			return err
		}
		m.variables = append(m.variables, variable{typ: ops[0], id: ops[1], storage: ops[2]})
	}
	return nil
}

func (m *module) decorFor(id uint32) *decorations {
	d, ok := m.decor[id]
	if !ok {
		d = &decorations{}
		m.decor[id] = d
	}
	return d
}

func (m *module) memberDecorFor(id, member uint32) *decorations {
	k := memberKey{id, member}
	d, ok := m.memberDecor[k]
	if !ok {
		d = &decorations{}
		m.memberDecor[k] = d
	}
	return d
}

func applyDecoration(d *decorations, decoration uint32, lits []uint32) {
	lit := func() *uint32 {
		if len(lits) == 0 {
			return nil
		}
		v := lits[0]
		return &v
	}
	switch decoration {
	case decorBlock:
		d.block = true
	case decorBufferBlock:
		d.bufferBlock = true
	case decorNonWritable:
		d.nonWritable = true
	case decorBuiltIn:
		d.builtIn = true
	case decorBinding:
		d.binding = lit()
	case decorDescriptorSet:
		d.set = lit()
	case decorLocation:
		d.location = lit()
	case decorOffset:
		d.offset = lit()
	case decorArrayStride:
		if v := lit(); v != nil {
			d.arrayStride = *v
		}
	case decorMatrixStride:
		if v := lit(); v != nil {
			d.matrixStride = *v
		}
	}
}

// decodeString reads a nul-terminated UTF-8 literal packed little-endian
// into words.
func decodeString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for i := range 4 {
			c := byte(w >> (8 * i))
			if c == 0 {
				return string(buf)
			}
			buf = append(buf, c)
		}
	}
	return string(buf)
}

func (m *module) reflectVariable(r *StageReflection, entry *entryPoint, v variable) error {
	ptr, ok := m.types[v.typ]
	if !ok || ptr.op != opTypePointer {
		return fmt.Errorf("%w: variable %d has non-pointer type %d", ErrInvalidSPIRV, v.id, v.typ)
	}
	d := m.decor[v.id]
	if d == nil {
		d = &decorations{}
	}

	switch v.storage {
	case storageInput:
		if r.Stage == StageVertex && slices.Contains(entry.iface, v.id) {
			m.reflectInput(r, v, ptr.elem, d)
		}
		return nil
	case storagePushConstant:
		block := m.block(v.id, ptr.elem)
		block.BindSpace = PushConstantSpace
		block.BindPoint = uint32(len(r.Blocks))
		r.Blocks = append(r.Blocks, block)
		return nil
	case storageUniform, storageUniformConst, storageStorageBuf:
	default:
		return nil
	}

	if d.binding == nil {
		return nil
	}
	point := *d.binding
	var space uint32
	if d.set != nil {
		space = *d.set
	}

	// Arrays of resources bind at the array's slot.
	inner := ptr.elem
	for {
		t := m.types[inner]
		if t == nil || (t.op != opTypeArray && t.op != opTypeRuntimeArray) {
			break
		}
		inner = t.elem
	}
	t := m.types[inner]
	if t == nil {
		return fmt.Errorf("%w: variable %d has undeclared type %d", ErrInvalidSPIRV, v.id, inner)
	}

	binding := ResourceBinding{
		Name:       m.names[v.id],
		BindPoint:  point,
		BindSpace:  space,
		BlockIndex: NoBlock,
	}
	if binding.Name == "" {
		binding.Name = m.names[inner]
	}

	switch {
	case t.op == opTypeStruct && v.storage == storageUniform && !m.decorOf(inner).bufferBlock:
		block := m.block(v.id, inner)
		block.BindPoint, block.BindSpace = point, space
		binding.Type = BindingConstantBuffer
		binding.BlockIndex = len(r.Blocks)
		r.Blocks = append(r.Blocks, block)
	case t.op == opTypeStruct:
		binding.Type = BindingUnorderedAccess
		if m.readOnly(v.id, inner) {
			binding.Type = BindingShaderResource
		}
	case t.op == opTypeSampler:
		binding.Type = BindingSampler
	case t.op == opTypeImage && t.sampled == 2:
		binding.Type = BindingUnorderedAccess
		if d.nonWritable {
			binding.Type = BindingShaderResource
		}
	case t.op == opTypeImage, t.op == opTypeSampledImage:
		binding.Type = BindingShaderResource
	default:
		return nil
	}
	r.Bindings = append(r.Bindings, binding)
	return nil
}

func (m *module) decorOf(id uint32) *decorations {
	if d := m.decor[id]; d != nil {
		return d
	}
	return &decorations{}
}

// readOnly reports whether a storage buffer variable or every member of its
// struct is NonWritable.
func (m *module) readOnly(varID, structID uint32) bool {
	if m.decorOf(varID).nonWritable {
		return true
	}
	t := m.types[structID]
	for i := range t.members {
		d := m.memberDecor[memberKey{structID, uint32(i)}]
		if d == nil || !d.nonWritable {
			return false
		}
	}
	return len(t.members) > 0
}

// block builds a register block from a struct type.
func (m *module) block(varID, structID uint32) RegisterBlock {
	b := RegisterBlock{Name: m.names[structID]}
	if b.Name == "" {
		b.Name = m.names[varID]
	}
	t := m.types[structID]
	if t == nil || t.op != opTypeStruct {
		return b
	}
	b.Parameters = make([]Parameter, 0, len(t.members))
	var end uint32
	for i, mt := range t.members {
		k := memberKey{structID, uint32(i)}
		md := m.memberDecor[k]
		if md == nil {
			md = &decorations{}
		}
		var offset uint32
		if md.offset != nil {
			offset = *md.offset
		} else {
			offset = end
		}
		size := m.sizeOf(mt, md)
		b.Parameters = append(b.Parameters, Parameter{
			Name:   m.memberNames[k],
			Size:   size,
			Offset: offset,
		})
		end = max(end, offset+size)
	}
	b.Size = end
	return b
}

// sizeOf returns the byte size of a type inside a block. md carries the
// member decorations that affect layout.
func (m *module) sizeOf(id uint32, md *decorations) uint32 {
	t := m.types[id]
	if t == nil {
		return 0
	}
	switch t.op {
	case opTypeBool:
		return 4
	case opTypeInt, opTypeFloat:
		return t.width / 8
	case opTypeVector:
		return t.count * m.sizeOf(t.elem, nil)
	case opTypeMatrix:
		if md != nil && md.matrixStride != 0 {
			return t.count * md.matrixStride
		}
		return t.count * m.sizeOf(t.elem, nil)
	case opTypeArray:
		length := m.constants[t.count]
		stride := m.decorOf(id).arrayStride
		if stride == 0 {
			stride = m.sizeOf(t.elem, md)
		}
		return length * stride
	case opTypeStruct:
		var end uint32
		for i, mt := range t.members {
			k := memberKey{id, uint32(i)}
			sub := m.memberDecor[k]
			var offset uint32
			if sub != nil && sub.offset != nil {
				offset = *sub.offset
			} else {
				offset = end
			}
			end = max(end, offset+m.sizeOf(mt, sub))
		}
		return end
	}
	return 0
}

func (m *module) reflectInput(r *StageReflection, v variable, typ uint32, d *decorations) {
	if d.builtIn || d.location == nil {
		return
	}
	dt := m.dataType(typ)
	if dt == layout.None {
		return
	}
	name := m.names[v.id]
	if name == "" {
		name = fmt.Sprintf("location%d", *d.location)
	}
	r.Inputs = append(r.Inputs, VertexInput{Name: name, Location: *d.location, Type: dt})
}

// dataType maps a 32-bit scalar, vector or square matrix type to a layout
// data type.
func (m *module) dataType(id uint32) layout.DataType {
	t := m.types[id]
	if t == nil {
		return layout.None
	}
	switch t.op {
	case opTypeBool:
		return layout.Bool
	case opTypeFloat:
		return layout.Float
	case opTypeInt:
		return layout.Int
	case opTypeVector:
		base := m.dataType(t.elem)
		switch {
		case base == layout.Float && t.count >= 2 && t.count <= 4:
			return []layout.DataType{layout.Float2, layout.Float3, layout.Float4}[t.count-2]
		case base == layout.Int && t.count >= 2 && t.count <= 4:
			return []layout.DataType{layout.Int2, layout.Int3, layout.Int4}[t.count-2]
		}
	case opTypeMatrix:
		col := m.dataType(t.elem)
		switch {
		case col == layout.Float3 && t.count == 3:
			return layout.Mat3
		case col == layout.Float4 && t.count == 4:
			return layout.Mat4
		}
	}
	return layout.None
}
