// Package gputest provides a gpu.Device that records calls instead of talking
// to a driver, for testing GPU-dependent code without a context.
package gputest

import (
	"fmt"
	"image"

	"github.com/irfansharif/horde/internal/gpu"
)

// Draw records one DrawInstanced call.
type Draw struct {
	VertexArray gpu.VertexArray
	Program     gpu.Program // program in use at draw time
	Texture     gpu.Texture // texture bound to unit 0 at draw time
	Target      gpu.Target  // target of the enclosing pass
	Vertices    int
	Instances   int
}

// Recorder is an in-memory gpu.Device. The zero value is not usable; use New.
type Recorder struct {
	// CompileErr, if set, is returned by CompileProgram.
	CompileErr error
	// TargetErr, if set, is returned by NewTarget.
	TargetErr error

	nextID uint32

	Programs   []gpu.Program
	VertexSrc  string
	FragSrc    string
	Uniforms   map[int32][]float32
	uniformIDs map[string]int32

	Uploads  []*image.NRGBA // every texture upload, in order
	Allocs   map[gpu.Buffer][]int
	Writes   map[gpu.Buffer][]int // float counts written per WriteBuffer call
	Buffers  map[gpu.Buffer][]float32
	Static   map[gpu.Buffer][]float32
	Arrays   []gpu.VertexArray
	Passes   []gpu.Target
	Draws    []Draw
	Deleted  int
	current  gpu.Program
	bound    gpu.Texture
	inTarget gpu.Target
}

var _ gpu.Device = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{
		Uniforms:   make(map[int32][]float32),
		uniformIDs: make(map[string]int32),
		Allocs:     make(map[gpu.Buffer][]int),
		Writes:     make(map[gpu.Buffer][]int),
		Buffers:    make(map[gpu.Buffer][]float32),
		Static:     make(map[gpu.Buffer][]float32),
	}
}

func (r *Recorder) id() uint32 {
	r.nextID++
	return r.nextID
}

func (r *Recorder) CompileProgram(vertexSrc, fragmentSrc string) (gpu.Program, error) {
	if r.CompileErr != nil {
		return 0, r.CompileErr
	}
	p := gpu.Program(r.id())
	r.Programs = append(r.Programs, p)
	r.VertexSrc, r.FragSrc = vertexSrc, fragmentSrc
	return p, nil
}

func (r *Recorder) UniformLocation(p gpu.Program, name string) int32 {
	key := fmt.Sprintf("%d/%s", p, name)
	if loc, ok := r.uniformIDs[key]; ok {
		return loc
	}
	loc := int32(len(r.uniformIDs))
	r.uniformIDs[key] = loc
	return loc
}

// Uniform returns the last value set for the named uniform of p.
func (r *Recorder) Uniform(p gpu.Program, name string) []float32 {
	return r.Uniforms[r.UniformLocation(p, name)]
}

func (r *Recorder) UseProgram(p gpu.Program)          { r.current = p }
func (r *Recorder) Uniform1i(loc int32, v int32)      { r.Uniforms[loc] = []float32{float32(v)} }
func (r *Recorder) Uniform2f(loc int32, x, y float32) { r.Uniforms[loc] = []float32{x, y} }
func (r *Recorder) Uniform4f(loc int32, x, y, z, w float32) {
	r.Uniforms[loc] = []float32{x, y, z, w}
}
func (r *Recorder) DeleteProgram(gpu.Program) { r.Deleted++ }

func (r *Recorder) NewTexture() gpu.Texture { return gpu.Texture(r.id()) }
func (r *Recorder) UploadTexture(_ gpu.Texture, img *image.NRGBA) {
	r.Uploads = append(r.Uploads, img)
}
func (r *Recorder) BindTexture(unit uint32, t gpu.Texture) {
	if unit == 0 {
		r.bound = t
	}
}
func (r *Recorder) DeleteTexture(gpu.Texture) { r.Deleted++ }

func (r *Recorder) NewBuffer() gpu.Buffer { return gpu.Buffer(r.id()) }
func (r *Recorder) BufferStatic(b gpu.Buffer, data []float32) {
	r.Static[b] = append([]float32(nil), data...)
}
func (r *Recorder) AllocBuffer(b gpu.Buffer, size int) {
	r.Allocs[b] = append(r.Allocs[b], size)
	r.Buffers[b] = make([]float32, size/4)
}
func (r *Recorder) WriteBuffer(b gpu.Buffer, data []float32) {
	r.Writes[b] = append(r.Writes[b], len(data))
	copy(r.Buffers[b], data)
}
func (r *Recorder) DeleteBuffer(gpu.Buffer) { r.Deleted++ }

func (r *Recorder) NewVertexArray(_ gpu.Buffer, _ []gpu.Attrib, _ int, _ gpu.Buffer, _ []gpu.Attrib, _ int) gpu.VertexArray {
	va := gpu.VertexArray(r.id())
	r.Arrays = append(r.Arrays, va)
	return va
}
func (r *Recorder) DeleteVertexArray(gpu.VertexArray) { r.Deleted++ }

func (r *Recorder) NewTarget(width, height int) (gpu.Target, error) {
	if r.TargetErr != nil {
		return gpu.Target{}, r.TargetErr
	}
	return gpu.Target{FBO: r.id(), Texture: gpu.Texture(r.id()), Width: width, Height: height}, nil
}
func (r *Recorder) BeginPass(t gpu.Target) {
	r.Passes = append(r.Passes, t)
	r.inTarget = t
}
func (r *Recorder) DeleteTarget(gpu.Target) { r.Deleted++ }

func (r *Recorder) DrawInstanced(va gpu.VertexArray, vertices, instances int) {
	r.Draws = append(r.Draws, Draw{
		VertexArray: va,
		Program:     r.current,
		Texture:     r.bound,
		Target:      r.inTarget,
		Vertices:    vertices,
		Instances:   instances,
	})
}
