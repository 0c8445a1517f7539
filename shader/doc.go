// Package shader models the reflected resource interface of shader
// programs.
//
// Each stage owns register blocks (constant buffers with named parameters),
// resource bindings and, for the vertex stage, vertex inputs. A slot is a
// (bind point, bind space) pair; within one stage a slot names at most one
// block, while different stages may reuse a slot with another meaning.
//
// Reflection data comes from SPIR-V modules. WGSL sources are compiled to
// SPIR-V with naga first:
//
//	p := shader.NewProgram("sprite")
//	if err := p.AddWGSL(src, shader.StageVertex, shader.StagePixel); err != nil {
//		return err
//	}
//	refl, err := p.Reflect()
package shader
