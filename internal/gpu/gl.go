package gpu

import (
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
)

var glLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("HORDE_DEBUG_GL") == "1" {
		glLogger = log.New(os.Stdout, "[gl] ", log.Ltime|log.Lmsgprefix)
	}
}

// GL implements Device on OpenGL 4.1 core. It must be created and used on the
// OS thread that holds the current context.
type GL struct {
	version string
}

var _ Device = (*GL)(nil)

// NewGL loads the OpenGL entry points for the current context. It fails fast
// with ErrNoContext if there is none, so callers can fall back to a non-GPU
// path.
func NewGL() (*GL, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContext, err)
	}
	ver := gl.GetString(gl.VERSION)
	if ver == nil {
		return nil, fmt.Errorf("%w: no current OpenGL context", ErrNoContext)
	}
	d := &GL{version: gl.GoStr(ver)}
	glLogger.Printf("initialized OpenGL %s", d.version)

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.DEPTH_TEST)
	return d, nil
}

// Version returns the driver's version string.
func (d *GL) Version() string { return d.version }

func (d *GL) CompileProgram(vertexSrc, fragmentSrc string) (Program, error) {
	vertexShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	defer gl.DeleteShader(vertexShader)

	fragmentShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(logText))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("shader linking failed: %s", strings.TrimRight(logText, "\x00"))
	}
	return Program(program), nil
}

// compileShader compiles a single shader from source.
func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("shader compilation failed: %s", strings.TrimRight(logText, "\x00"))
	}
	return shader, nil
}

func (d *GL) UniformLocation(p Program, name string) int32 {
	return gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00"))
}

func (d *GL) UseProgram(p Program)                    { gl.UseProgram(uint32(p)) }
func (d *GL) Uniform1i(loc int32, v int32)            { gl.Uniform1i(loc, v) }
func (d *GL) Uniform2f(loc int32, x, y float32)       { gl.Uniform2f(loc, x, y) }
func (d *GL) Uniform4f(loc int32, x, y, z, w float32) { gl.Uniform4f(loc, x, y, z, w) }
func (d *GL) DeleteProgram(p Program)                 { gl.DeleteProgram(uint32(p)) }

func (d *GL) NewTexture() Texture {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	return Texture(tex)
}

func (d *GL) UploadTexture(t Texture, img *image.NRGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
}

func (d *GL) BindTexture(unit uint32, t Texture) {
	gl.ActiveTexture(gl.TEXTURE0 + unit)
	gl.BindTexture(gl.TEXTURE_2D, uint32(t))
}

func (d *GL) DeleteTexture(t Texture) {
	tex := uint32(t)
	gl.DeleteTextures(1, &tex)
}

func (d *GL) NewBuffer() Buffer {
	var vbo uint32
	gl.GenBuffers(1, &vbo)
	return Buffer(vbo)
}

func (d *GL) BufferStatic(b Buffer, data []float32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *GL) AllocBuffer(b Buffer, size int) {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.BufferData(gl.ARRAY_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *GL) WriteBuffer(b Buffer, data []float32) {
	if len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data)*4, gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (d *GL) DeleteBuffer(b Buffer) {
	vbo := uint32(b)
	gl.DeleteBuffers(1, &vbo)
}

func (d *GL) NewVertexArray(vertices Buffer, vertexAttribs []Attrib, vertexStride int,
	instances Buffer, instanceAttribs []Attrib, instanceStride int) VertexArray {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(vertices))
	for _, a := range vertexAttribs {
		gl.EnableVertexAttribArray(a.Location)
		gl.VertexAttribPointer(a.Location, a.Size, gl.FLOAT, false, int32(vertexStride*4), gl.PtrOffset(a.Offset*4))
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(instances))
	for _, a := range instanceAttribs {
		gl.EnableVertexAttribArray(a.Location)
		gl.VertexAttribPointer(a.Location, a.Size, gl.FLOAT, false, int32(instanceStride*4), gl.PtrOffset(a.Offset*4))
		gl.VertexAttribDivisor(a.Location, 1)
	}

	// Unbind.
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return VertexArray(vao)
}

func (d *GL) DeleteVertexArray(va VertexArray) {
	vao := uint32(va)
	gl.DeleteVertexArrays(1, &vao)
}

func (d *GL) NewTarget(width, height int) (Target, error) {
	if width <= 0 || height <= 0 {
		return Target{}, fmt.Errorf("invalid target dimensions %dx%d", width, height)
	}
	t := Target{Width: width, Height: height}

	tex := d.NewTexture()
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	t.Texture = tex

	gl.GenFramebuffers(1, &t.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(tex), 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		d.DeleteTarget(t)
		return Target{}, fmt.Errorf("framebuffer incomplete (status 0x%x)", status)
	}
	return t, nil
}

func (d *GL) BeginPass(t Target) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)
	gl.Viewport(0, 0, int32(t.Width), int32(t.Height))
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

func (d *GL) DeleteTarget(t Target) {
	if t.FBO != 0 {
		gl.DeleteFramebuffers(1, &t.FBO)
	}
	if t.Texture != 0 {
		d.DeleteTexture(t.Texture)
	}
}

func (d *GL) DrawInstanced(va VertexArray, vertices, instances int) {
	gl.BindVertexArray(uint32(va))
	gl.DrawArraysInstanced(gl.TRIANGLES, 0, int32(vertices), int32(instances))
	gl.BindVertexArray(0)
}

// Present copies t over the default framebuffer of the given size, scaling
// it to fit. Every pixel is replaced, alpha included, so the window needs no
// clear beforehand.
func (d *GL) Present(t Target, width, height int) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, t.FBO)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(
		0, 0, int32(t.Width), int32(t.Height),
		0, 0, int32(width), int32(height),
		gl.COLOR_BUFFER_BIT, gl.LINEAR,
	)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}
