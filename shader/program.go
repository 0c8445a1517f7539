package shader

import (
	"fmt"

	"github.com/gogpu/naga"
)

// CompileWGSL compiles WGSL source to SPIR-V words with naga.
func CompileWGSL(source string) ([]uint32, error) {
	code, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("shader: compile WGSL: %w", err)
	}
	return WordsFromBytes(code)
}

// ReflectWGSL compiles WGSL source and reflects the entry point of stage.
func ReflectWGSL(stage Stage, source string) (*StageReflection, error) {
	words, err := CompileWGSL(source)
	if err != nil {
		return nil, err
	}
	return ReflectSPIRV(stage, words)
}

// Program is a set of per-stage SPIR-V modules. One module may serve
// several stages when it holds several entry points.
type Program struct {
	Label   string
	modules map[Stage][]uint32
}

// NewProgram creates an empty program.
func NewProgram(label string) *Program {
	return &Program{Label: label, modules: make(map[Stage][]uint32)}
}

// AddSPIRV sets the module of a stage.
func (p *Program) AddSPIRV(stage Stage, words []uint32) error {
	if !stage.Valid() {
		return fmt.Errorf("shader: invalid stage %v", stage)
	}
	if len(words) == 0 {
		return fmt.Errorf("%w: empty module for %s", ErrInvalidSPIRV, stage)
	}
	p.modules[stage] = words
	return nil
}

// AddWGSL compiles source and uses it for every listed stage.
func (p *Program) AddWGSL(source string, stages ...Stage) error {
	words, err := CompileWGSL(source)
	if err != nil {
		return fmt.Errorf("shader: program %q: %w", p.Label, err)
	}
	for _, s := range stages {
		if err := p.AddSPIRV(s, words); err != nil {
			return err
		}
	}
	return nil
}

// Module returns the SPIR-V of a stage.
func (p *Program) Module(stage Stage) ([]uint32, bool) {
	words, ok := p.modules[stage]
	return words, ok
}

// Reflect reflects every stage and combines the results.
func (p *Program) Reflect() (*Reflection, error) {
	stages := make([]*StageReflection, 0, len(p.modules))
	for _, s := range Stages() {
		words, ok := p.modules[s]
		if !ok {
			continue
		}
		sr, err := ReflectSPIRV(s, words)
		if err != nil {
			return nil, fmt.Errorf("shader: program %q: %s: %w", p.Label, s, err)
		}
		stages = append(stages, sr)
	}
	return NewReflection(stages...)
}
