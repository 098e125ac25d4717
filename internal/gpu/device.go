// Package gpu is the narrow slice of the graphics API the sprite renderer
// needs: programs, textures, instance buffers, an off-screen render target and
// a single instanced draw. The GL type implements it on top of OpenGL 4.1; the
// gputest package provides a recording implementation for tests.
package gpu

import (
	"errors"
	"image"
)

// ErrNoContext is returned when no usable GPU context is available.
var ErrNoContext = errors.New("gpu: no GPU context available")

type (
	Program     uint32 // linked shader program
	Texture     uint32 // 2D RGBA texture
	Buffer      uint32 // vertex/instance buffer object
	VertexArray uint32 // vertex array object
)

// Target is an off-screen render surface: a framebuffer with a color texture
// attached. Callers composite Texture onto their own presentation surface.
type Target struct {
	FBO     uint32
	Texture Texture
	Width   int
	Height  int
}

// Attrib describes one float vertex attribute within an interleaved buffer.
type Attrib struct {
	Location uint32
	Size     int32 // number of float components
	Offset   int   // in floats from the start of the record
}

// Device is the set of GPU operations used by the renderer. Implementations
// are not safe for concurrent use; all calls happen on the thread that owns
// the context.
type Device interface {
	CompileProgram(vertexSrc, fragmentSrc string) (Program, error)
	UniformLocation(p Program, name string) int32
	UseProgram(p Program)
	Uniform1i(loc int32, v int32)
	Uniform2f(loc int32, x, y float32)
	Uniform4f(loc int32, x, y, z, w float32)
	DeleteProgram(p Program)

	NewTexture() Texture
	UploadTexture(t Texture, img *image.NRGBA)
	BindTexture(unit uint32, t Texture)
	DeleteTexture(t Texture)

	NewBuffer() Buffer
	// BufferStatic allocates b and fills it with data, for geometry that never
	// changes.
	BufferStatic(b Buffer, data []float32)
	// AllocBuffer (re)allocates b with room for size bytes, discarding its
	// contents.
	AllocBuffer(b Buffer, size int)
	// WriteBuffer writes data at the start of b.
	WriteBuffer(b Buffer, data []float32)
	DeleteBuffer(b Buffer)

	// NewVertexArray binds per-vertex attributes from vertices and
	// per-instance attributes (divisor 1) from instances.
	NewVertexArray(vertices Buffer, vertexAttribs []Attrib, vertexStride int,
		instances Buffer, instanceAttribs []Attrib, instanceStride int) VertexArray
	DeleteVertexArray(va VertexArray)

	NewTarget(width, height int) (Target, error)
	// BeginPass binds t, sets the viewport to its size and clears it to
	// transparent black.
	BeginPass(t Target)
	DeleteTarget(t Target)

	DrawInstanced(va VertexArray, vertices, instances int)
}
