package assets

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/spf13/afero"

	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/resource"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// PassthroughWGSL is the default shader: positions pass straight through and
// fragments are colored by their UV.
const PassthroughWGSL = `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@location(0) position: vec2<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(position, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return vec4<f32>(in.uv, 1.0, 1.0);
}
`

// Shader is WGSL source compiled to SPIR-V at load time.
type Shader struct {
	Source string
	SPIRV  []byte
}

func (s *Shader) Load(l resource.Lookup, path string) error {
	src, err := afero.ReadFile(l.FS(), path)
	if err != nil {
		return err
	}
	spirv, err := compileWGSL(string(src))
	if err != nil {
		return fmt.Errorf("compiling %s: %w", path, err)
	}
	s.Source = string(src)
	s.SPIRV = spirv
	return nil
}

func (s *Shader) LoadDefault(l resource.Lookup) {
	s.Source = PassthroughWGSL
	spirv, err := compileWGSL(PassthroughWGSL)
	if err != nil {
		l.Logger().ErrorErr(log.CatAssets, "failed to compile default shader", err)
		return
	}
	s.SPIRV = spirv
}

// Words returns the module as little-endian 32-bit words.
func (s *Shader) Words() []uint32 {
	words := make([]uint32, len(s.SPIRV)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(s.SPIRV[i*4:])
	}
	return words
}

func (s *Shader) String() string {
	return fmt.Sprintf("shader (%d bytes WGSL, %d SPIR-V words)", len(s.Source), len(s.SPIRV)/4)
}

func compileWGSL(src string) ([]byte, error) {
	spirv, err := naga.Compile(src)
	if err != nil {
		return nil, err
	}
	if len(spirv) < 4 || len(spirv)%4 != 0 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return nil, fmt.Errorf("compiler produced a malformed SPIR-V module (%d bytes)", len(spirv))
	}
	return spirv, nil
}
