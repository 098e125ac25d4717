// Package shader owns the sprite program: a unit quad expanded per instance
// into a rotated, flippable, tinted, atlas-sampled sprite in device space.
package shader

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/irfansharif/horde/internal/gpu"
	"github.com/irfansharif/horde/internal/memory"
)

// QuadVertices is the number of vertices in the unit quad (two triangles).
const QuadVertices = 6

// Attribute locations.
const (
	locCorner = iota
	locCenterSizeAngle
	locUV
	locFlip
	locTint
)

// Vertex shader. Flips the unit quad horizontally, rotates it, scales it from
// physical pixels into device units using the viewport size and offsets it to
// the instance center. UVs are remapped into the instance's atlas rect, with
// the quad's top edge sampling V0.
const vertexShaderSource = `
#version 330 core
layout (location = 0) in vec2 aCorner;
layout (location = 1) in vec4 iCenterSizeAngle;
layout (location = 2) in vec4 iUV;
layout (location = 3) in float iFlip;
layout (location = 4) in vec4 iTint;

uniform vec2 uViewport;

out vec2 vUV;
out vec4 vTint;

void main() {
    vec2 p = vec2(aCorner.x * iFlip, aCorner.y);
    float c = cos(iCenterSizeAngle.w);
    float s = sin(iCenterSizeAngle.w);
    vec2 rotated = vec2(p.x * c - p.y * s, p.x * s + p.y * c);
    vec2 scale = 2.0 * iCenterSizeAngle.z / uViewport;
    gl_Position = vec4(iCenterSizeAngle.xy + rotated * scale, 0.0, 1.0);

    vec2 t = vec2(aCorner.x + 0.5, 0.5 - aCorner.y);
    vUV = mix(iUV.xy, iUV.zw, t);
    vTint = iTint;
}
`

// Fragment shader. Samples the atlas, drops (nearly) transparent texels and
// applies the per-instance and global tints.
const fragmentShaderSource = `
#version 330 core
in vec2 vUV;
in vec4 vTint;

uniform sampler2D uAtlas;
uniform vec4 uGlobalTint;

out vec4 FragColor;

void main() {
    vec4 texel = texture(uAtlas, vUV);
    if (texel.a < 0.01) {
        discard;
    }
    FragColor = texel * vTint * uGlobalTint;
}
`

// unitQuad is centered on the origin with unit side.
var unitQuad = []float32{
	-0.5, -0.5,
	0.5, -0.5,
	0.5, 0.5,
	-0.5, -0.5,
	0.5, 0.5,
	-0.5, 0.5,
}

// Pipeline handles sprite program compilation, linking, and uniform
// management.
type Pipeline struct {
	device  gpu.Device
	program gpu.Program
	quad    gpu.Buffer
	va      gpu.VertexArray

	uViewport   int32 // uniform location for viewport size (physical pixels)
	uGlobalTint int32 // uniform location for whole-scene tint
	uAtlas      int32 // uniform location for the atlas sampler
}

// New compiles and links the sprite program and uploads the unit quad.
// Compilation or link failures are returned; there is no degraded mode.
func New(device gpu.Device) (*Pipeline, error) {
	program, err := device.CompileProgram(vertexShaderSource, fragmentShaderSource)
	if err != nil {
		return nil, fmt.Errorf("building sprite program: %w", err)
	}
	p := &Pipeline{
		device:  device,
		program: program,
		quad:    device.NewBuffer(),
	}
	device.BufferStatic(p.quad, unitQuad)

	p.uViewport = device.UniformLocation(program, "uViewport")
	p.uGlobalTint = device.UniformLocation(program, "uGlobalTint")
	p.uAtlas = device.UniformLocation(program, "uAtlas")
	return p, nil
}

// Program returns the linked program.
func (p *Pipeline) Program() gpu.Program { return p.program }

// instanceAttribs mirrors the record layout in the memory package.
var instanceAttribs = []gpu.Attrib{
	{Location: locCenterSizeAngle, Size: 4, Offset: memory.OffsetCenter},
	{Location: locUV, Size: 4, Offset: memory.OffsetUV},
	{Location: locFlip, Size: 1, Offset: memory.OffsetFlip},
	{Location: locTint, Size: 4, Offset: memory.OffsetTint},
}

// Attach binds instances as the per-instance attribute source. It must be
// called before Draw; reallocating the buffer's storage does not require
// attaching again.
func (p *Pipeline) Attach(instances gpu.Buffer) {
	if p.va != 0 {
		p.device.DeleteVertexArray(p.va)
	}
	p.va = p.device.NewVertexArray(
		p.quad, []gpu.Attrib{{Location: locCorner, Size: 2, Offset: 0}}, 2,
		instances, instanceAttribs, memory.Stride,
	)
}

// Use binds the program and points the atlas sampler at texture unit 0.
func (p *Pipeline) Use() {
	p.device.UseProgram(p.program)
	p.device.Uniform1i(p.uAtlas, 0)
}

// SetViewport sets the viewport size in physical pixels.
func (p *Pipeline) SetViewport(width, height int) {
	p.device.Uniform2f(p.uViewport, float32(width), float32(height))
}

// SetGlobalTint sets the tint multiplied into every sprite.
func (p *Pipeline) SetGlobalTint(tint mgl32.Vec4) {
	p.device.Uniform4f(p.uGlobalTint, tint[0], tint[1], tint[2], tint[3])
}

// Draw issues one instanced draw of the unit quad.
func (p *Pipeline) Draw(instances int) error {
	if p.va == 0 {
		return fmt.Errorf("no instance buffer attached")
	}
	p.device.DrawInstanced(p.va, QuadVertices, instances)
	return nil
}

// Delete releases the program and its buffers.
func (p *Pipeline) Delete() {
	if p.va != 0 {
		p.device.DeleteVertexArray(p.va)
		p.va = 0
	}
	if p.quad != 0 {
		p.device.DeleteBuffer(p.quad)
		p.quad = 0
	}
	if p.program != 0 {
		p.device.DeleteProgram(p.program)
		p.program = 0
	}
}
