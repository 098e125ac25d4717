package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/horde/internal/app"
	"github.com/irfansharif/horde/internal/gpu"
	"github.com/irfansharif/horde/internal/memory"
	"github.com/irfansharif/horde/internal/render"
)

const logFlags = log.Ltime | log.Lshortfile

// maxStep bounds the simulation step after a stall (window drag, breakpoint).
const maxStep = 100 * time.Millisecond

var runtimeLogger *log.Logger = log.New(io.Discard, "", 0)

var (
	widthFlag  = flag.Int("width", 1280, "initial window width")
	heightFlag = flag.Int("height", 960, "initial window height")
	vsyncFlag  = flag.Bool("vsync", true, "synchronize buffer swaps with the display")
)

func init() {
	// OpenGL contexts are tied to specific OS threads - let's pin to just one.
	runtime.LockOSThread()
	log.SetFlags(logFlags)

	if os.Getenv("HORDE_DEBUG_RUNTIME") == "1" {
		runtimeLogger = log.New(os.Stdout, "[runtime] ", log.Ltime|log.Lmsgprefix)
	}
}

func makeTitle(fps float64, enemies int, renderStats render.Stats, memStats memory.Stats) string {
	atlas := "pending"
	if renderStats.AtlasReady {
		atlas = fmt.Sprintf("%dpx", renderStats.AtlasSize)
	}
	return fmt.Sprintf("Horde (%.1f FPS, %.2fms/frame, %d enemies, %d drawn, %d culled, %d shed, %d imposters, atlas %s, %.2fµs/draw, %.2fms/prepare, %.1fKiB instances)",
		fps,
		renderStats.AvgFrameMs,
		enemies,
		renderStats.Instances,
		renderStats.Culled,
		renderStats.SkippedLOD,
		renderStats.Imposters,
		atlas,
		renderStats.LastDrawTimeUs,
		renderStats.LastPrepareTimeMs,
		float64(memStats.GPUBytes)/1024.0,
	)
}

func main() {
	flag.Parse()

	if err := glfw.Init(); err != nil {
		log.Fatalf("Failed to initialize GLFW: %v", err)
	}
	defer glfw.Terminate()

	// Configure GLFW window hints - use OpenGL 4.1.
	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)

	window, err := glfw.CreateWindow(*widthFlag, *heightFlag, "Horde", nil, nil)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	window.MakeContextCurrent()
	if *vsyncFlag {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	device, err := gpu.NewGL()
	if err != nil {
		log.Fatalf("Failed to initialize OpenGL: %v", err)
	}
	runtimeLogger.Printf("OpenGL %s", device.Version())

	s := seed()
	cfg := render.DefaultConfig()
	cfg.Seed = s
	cfg.LOD.Imposters = imposters()

	fw, fh := window.GetFramebufferSize()
	renderer, err := render.New(device, fw, fh, cfg)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer renderer.Dispose()

	scaleX, _ := window.GetContentScale()
	application := app.NewApp(window, renderer, app.NewView(fw, fh, float64(scaleX)), s)
	application.SpawnAround(enemies())

	// Initialize event handlers.
	eventHandlers := NewEventHandlers(application)

	frameCount := 0
	lastFPSUpdate := time.Now()
	lastFrame := time.Now()

	// Main loop.
	for !application.Window.ShouldClose() {
		now := time.Now()
		dt := min(now.Sub(lastFrame), maxStep)
		lastFrame = now

		eventHandlers.handleContinuousMovement(dt)
		eventHandlers.handleContinuousSpawning()
		application.Step(dt)

		renderStats := application.RenderFrame()

		// Present overwrites every pixel of the window, so there is no clear.
		w, h := application.Window.GetFramebufferSize()
		device.Present(renderer.Output(), w, h)

		application.Window.SwapBuffers()
		glfw.PollEvents()

		frameCount++
		if now.Sub(lastFPSUpdate) >= time.Second {
			fps := float64(frameCount) / now.Sub(lastFPSUpdate).Seconds()
			frameCount = 0
			lastFPSUpdate = now

			memStats := renderer.MemoryStats()
			application.Window.SetTitle(
				makeTitle(fps, application.Swarm.Len(), renderStats, memStats),
			)

			runtimeLogger.Println("=== Performance statistics ===")
			runtimeLogger.Printf("Frame rate:     %.1f FPS (%.2f ms/frame avg)", fps, renderStats.AvgFrameMs)
			runtimeLogger.Printf("Enemies:        %d total, %d drawn, %d culled, %d shed, %d imposters, %d missing", application.Swarm.Len(), renderStats.Instances, renderStats.Culled, renderStats.SkippedLOD, renderStats.Imposters, renderStats.MissingKeys)
			runtimeLogger.Printf("Atlas:          ready=%t, %dpx, %d builds", renderStats.AtlasReady, renderStats.AtlasSize, renderStats.AtlasBuilds)
			runtimeLogger.Printf("Render time:    %.2f µs (last draw), %.2f ms (last prepare)", renderStats.LastDrawTimeUs, renderStats.LastPrepareTimeMs)
			runtimeLogger.Printf("Instances:      %d capacity, %d growth events, %.2f MiB uploaded", memStats.Capacity, memStats.GrowthEvents, float64(memStats.TotalUploadBytes)/(1024.0*1024.0))
			runtimeLogger.Println("==============================")

			renderer.PrintMemoryStats()
		}
	}
}

func seed() int64 {
	seedStr := os.Getenv("HORDE_SEED")
	now := time.Now().Unix()
	if seedStr == "" {
		return now
	}
	seed, err := strconv.ParseInt(seedStr, 10, 64)
	if err != nil {
		log.Fatalf("Invalid HORDE_SEED value '%s': %v", seedStr, err)
	}
	return seed
}

func enemies() int {
	str := os.Getenv("HORDE_ENEMIES")
	if str == "" {
		return 2000
	}
	n, err := strconv.Atoi(str)
	if err != nil || n < 0 {
		log.Fatalf("Invalid HORDE_ENEMIES value '%s': %v", str, err)
	}
	return n
}

func imposters() bool {
	return os.Getenv("HORDE_IMPOSTERS") != "0"
}
