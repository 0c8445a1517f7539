package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/rhi/layout"
)

// NoBlock is the BlockIndex of a binding that does not refer to a register
// block.
const NoBlock = -1

// PushConstantSpace is the bind space reported for push constant blocks,
// which have no descriptor binding.
const PushConstantSpace = ^uint32(0)

// Parameter is a named member of a register block.
type Parameter struct {
	Name   string
	Size   uint32
	Offset uint32
}

// RegisterBlock is a named group of constants bound to one register slot.
type RegisterBlock struct {
	Name       string
	BindPoint  uint32
	BindSpace  uint32
	Size       uint32
	Parameters []Parameter
}

// Parameter returns the member named name.
func (b *RegisterBlock) Parameter(name string) (Parameter, bool) {
	for _, p := range b.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// ResourceBinding is a resource slot used by a stage.
type ResourceBinding struct {
	Name      string
	Type      BindingType
	BindPoint uint32
	BindSpace uint32

	// BlockIndex indexes the stage's Blocks for constant buffers, or is
	// NoBlock.
	BlockIndex int
}

// VertexInput is one vertex stage input attribute.
type VertexInput struct {
	Name     string
	Location uint32
	Type     layout.DataType
}

// StageReflection is the reflected interface of one stage.
type StageReflection struct {
	Stage    Stage
	Blocks   []RegisterBlock
	Bindings []ResourceBinding

	// Inputs is only populated for the vertex stage.
	Inputs []VertexInput
}

// RegisterBlockByName returns the block named name.
func (r *StageReflection) RegisterBlockByName(name string) (*RegisterBlock, bool) {
	for i := range r.Blocks {
		if r.Blocks[i].Name == name {
			return &r.Blocks[i], true
		}
	}
	return nil, false
}

// RegisterBlockByBindPoint returns the block bound at (point, space).
func (r *StageReflection) RegisterBlockByBindPoint(point, space uint32) (*RegisterBlock, bool) {
	for i := range r.Blocks {
		if r.Blocks[i].BindPoint == point && r.Blocks[i].BindSpace == space {
			return &r.Blocks[i], true
		}
	}
	return nil, false
}

// ParameterByName finds a parameter in any block. A name of the form
// "Block.param" restricts the search to that block.
func (r *StageReflection) ParameterByName(name string) (Parameter, bool) {
	if blockName, param, ok := strings.Cut(name, "."); ok {
		b, found := r.RegisterBlockByName(blockName)
		if !found {
			return Parameter{}, false
		}
		return b.Parameter(param)
	}
	for i := range r.Blocks {
		if p, ok := r.Blocks[i].Parameter(name); ok {
			return p, true
		}
	}
	return Parameter{}, false
}

// BindingByName returns the binding named name.
func (r *StageReflection) BindingByName(name string) (ResourceBinding, bool) {
	for _, b := range r.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return ResourceBinding{}, false
}

// validate checks that (bind point, bind space) identifies at most one
// block and that binding block indices are in range.
func (r *StageReflection) validate() error {
	if !r.Stage.Valid() {
		return fmt.Errorf("shader: invalid stage %v", r.Stage)
	}
	type slot struct{ point, space uint32 }
	seen := make(map[slot]string, len(r.Blocks))
	for _, b := range r.Blocks {
		s := slot{b.BindPoint, b.BindSpace}
		if prev, dup := seen[s]; dup {
			return fmt.Errorf("%w: %s blocks %q and %q at (%d, %d)",
				ErrDuplicateSlot, r.Stage, prev, b.Name, b.BindPoint, b.BindSpace)
		}
		seen[s] = b.Name
	}
	for _, b := range r.Bindings {
		if b.BlockIndex != NoBlock && (b.BlockIndex < 0 || b.BlockIndex >= len(r.Blocks)) {
			return fmt.Errorf("shader: %s binding %q has block index %d out of range", r.Stage, b.Name, b.BlockIndex)
		}
	}
	if r.Stage != StageVertex && len(r.Inputs) > 0 {
		return fmt.Errorf("shader: %s stage has vertex inputs", r.Stage)
	}
	return nil
}

// Reflection is the reflected interface of a whole program.
type Reflection struct {
	stages []*StageReflection
}

// NewReflection combines per-stage reflections. Each stage may appear once.
func NewReflection(stages ...*StageReflection) (*Reflection, error) {
	r := &Reflection{}
	for _, s := range stages {
		if s == nil {
			continue
		}
		if err := s.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.Stage(s.Stage); dup {
			return nil, fmt.Errorf("shader: stage %s reflected twice", s.Stage)
		}
		r.stages = append(r.stages, s)
	}
	slices.SortFunc(r.stages, func(a, b *StageReflection) int { return int(a.Stage) - int(b.Stage) })
	return r, nil
}

// Stage returns the reflection of one stage.
func (r *Reflection) Stage(s Stage) (*StageReflection, bool) {
	for _, sr := range r.stages {
		if sr.Stage == s {
			return sr, true
		}
	}
	return nil, false
}

// Stages returns the reflected stages in pipeline order.
func (r *Reflection) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	for i, sr := range r.stages {
		out[i] = sr.Stage
	}
	return out
}

// VertexInputs returns the vertex stage inputs ordered by location.
func (r *Reflection) VertexInputs() []VertexInput {
	vs, ok := r.Stage(StageVertex)
	if !ok {
		return nil
	}
	inputs := slices.Clone(vs.Inputs)
	slices.SortFunc(inputs, func(a, b VertexInput) int { return int(a.Location) - int(b.Location) })
	return inputs
}

// VertexLayout builds the vertex buffer layout matching the vertex inputs,
// in location order.
func (r *Reflection) VertexLayout() layout.BufferLayout {
	inputs := r.VertexInputs()
	elems := make([]layout.Element, len(inputs))
	for i, in := range inputs {
		elems[i] = layout.Element{Name: in.Name, Type: in.Type}
	}
	return layout.New(elems...)
}

// Blocks returns the register blocks of every stage. A block bound by
// several stages is listed once when every stage declares it identically.
// Different blocks at one (bind point, bind space) are all listed and
// reported by Conflicts.
func (r *Reflection) Blocks() []RegisterBlock {
	type slot struct{ point, space uint32 }
	seen := make(map[slot][]RegisterBlock)
	var out []RegisterBlock
	for _, sr := range r.stages {
		for _, b := range sr.Blocks {
			s := slot{b.BindPoint, b.BindSpace}
			if slices.ContainsFunc(seen[s], b.sameLayout) {
				continue
			}
			seen[s] = append(seen[s], b)
			out = append(out, b)
		}
	}
	return out
}

// sameLayout reports whether two blocks have the same name, size and
// parameters.
func (b RegisterBlock) sameLayout(o RegisterBlock) bool {
	return b.Name == o.Name && b.Size == o.Size && slices.Equal(b.Parameters, o.Parameters)
}

// Bindings returns the bindings of every stage, de-duplicated by
// (name, bind point, bind space). Block indices are dropped since they
// refer to per-stage block lists.
func (r *Reflection) Bindings() []ResourceBinding {
	type key struct {
		name         string
		point, space uint32
	}
	seen := make(map[key]bool)
	var out []ResourceBinding
	for _, sr := range r.stages {
		for _, b := range sr.Bindings {
			k := key{b.Name, b.BindPoint, b.BindSpace}
			if seen[k] {
				continue
			}
			seen[k] = true
			b.BlockIndex = NoBlock
			out = append(out, b)
		}
	}
	return out
}

// Conflict describes one slot used with different meanings by two stages.
type Conflict struct {
	BindPoint, BindSpace uint32
	First, Second        Stage
	FirstName            string
	SecondName           string
}

func (c Conflict) String() string {
	return fmt.Sprintf("(%d, %d): %s %q vs %s %q",
		c.BindPoint, c.BindSpace, c.First, c.FirstName, c.Second, c.SecondName)
}

// Conflicts reports slots used by more than one stage with a different
// meaning: bindings under another name or binding type, and register
// blocks with another layout. Each stage pair is reported once per slot.
func (r *Reflection) Conflicts() []Conflict {
	type slot struct{ point, space uint32 }
	type reported struct {
		s             slot
		first, second Stage
	}
	type bindingUse struct {
		stage Stage
		b     ResourceBinding
	}
	type blockUse struct {
		stage Stage
		b     RegisterBlock
	}
	done := make(map[reported]bool)
	var out []Conflict
	add := func(s slot, first, second Stage, firstName, secondName string) {
		k := reported{s, first, second}
		if done[k] {
			return
		}
		done[k] = true
		out = append(out, Conflict{
			BindPoint:  s.point,
			BindSpace:  s.space,
			First:      first,
			Second:     second,
			FirstName:  firstName,
			SecondName: secondName,
		})
	}

	bindings := make(map[slot]bindingUse)
	blocks := make(map[slot]blockUse)
	for _, sr := range r.stages {
		for _, b := range sr.Bindings {
			s := slot{b.BindPoint, b.BindSpace}
			prev, ok := bindings[s]
			if !ok {
				bindings[s] = bindingUse{sr.Stage, b}
				continue
			}
			if prev.b.Name != b.Name || prev.b.Type != b.Type {
				add(s, prev.stage, sr.Stage, prev.b.Name, b.Name)
			}
		}
		for _, b := range sr.Blocks {
			s := slot{b.BindPoint, b.BindSpace}
			prev, ok := blocks[s]
			if !ok {
				blocks[s] = blockUse{sr.Stage, b}
				continue
			}
			if !prev.b.sameLayout(b) {
				add(s, prev.stage, sr.Stage, prev.b.Name, b.Name)
			}
		}
	}
	return out
}
