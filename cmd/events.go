package main

import (
	"log"
	"math"
	"strconv"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/horde/internal/app"
)

const repeatInterval = 125 * time.Millisecond // time between successive spawns when held down
const playerSpeed = 300.0 // world units per second
const baseSpawnCount = 100

// EventHandlers manages all event handling for the application.
type EventHandlers struct {
	application *app.App

	// W/A/S/D (or the arrow keys) move the player while held.
	moveX, moveY float64

	// Space spawns enemies around the player, continuously if held.
	spaceHeld     bool
	lastSpawnTime time.Time

	// Input buffer for numeric input: a spawn count applied by the next
	// Space press.
	inputBuffer string
}

// NewEventHandlers creates a new event handlers manager.
func NewEventHandlers(application *app.App) *EventHandlers {
	eh := &EventHandlers{
		application:   application,
		lastSpawnTime: time.Now(),
	}
	eh.SetupCallbacks(application.Window)
	return eh
}

// SetupCallbacks configures all GLFW event callbacks.
func (eh *EventHandlers) SetupCallbacks(window *glfw.Window) {
	window.SetKeyCallback(func(wnd *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleKey(key, action, mods)
	})
	window.SetMouseButtonCallback(func(wnd *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		eh.handleMouseButton(button, action) // for striking
	})
	window.SetScrollCallback(func(wnd *glfw.Window, _, zoomDelta float64) {
		eh.performZoom(zoomDelta)
	})
	window.SetFramebufferSizeCallback(func(wnd *glfw.Window, newW, newH int) {
		eh.application.View.SetViewport(newW, newH)
	})
}

// handleKey handles keyboard input events.
func (eh *EventHandlers) handleKey(key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Press {
		// Handle number keys for input.
		if key >= glfw.Key0 && key <= glfw.Key9 {
			eh.inputBuffer += string(rune('0' + int(key-glfw.Key0)))
			return
		}
		if key == glfw.KeyEscape {
			eh.inputBuffer = ""
			return
		}
	}

	switch key {
	case glfw.KeyW, glfw.KeyUp:
		eh.handleMoveKey(action, 0, -1)
	case glfw.KeyS, glfw.KeyDown:
		eh.handleMoveKey(action, 0, 1)
	case glfw.KeyA, glfw.KeyLeft:
		eh.handleMoveKey(action, -1, 0)
	case glfw.KeyD, glfw.KeyRight:
		eh.handleMoveKey(action, 1, 0)
	case glfw.KeySpace:
		eh.handleSpawnKey(action)
	case glfw.KeyI:
		if action == glfw.Press {
			on := eh.application.ToggleImposters()
			log.Printf("far-tier imposters: %t", on)
		}
	case glfw.KeyM:
		if action == glfw.Press {
			kind := eh.application.Mutate()
			log.Printf("new enemy kind %q (sprite version %d)", kind, eh.application.Sprites.SpriteVersion())
		}
	case glfw.KeyR:
		if action == glfw.Press && (mods&glfw.ModShift) != 0 {
			eh.application.Sprites.Recolor()
		}
	case glfw.KeyEqual:
		if action == glfw.Press && (mods&glfw.ModSuper) != 0 {
			eh.performZoom(1) // zoom in
		}
	case glfw.KeyMinus:
		if action == glfw.Press && (mods&glfw.ModSuper) != 0 {
			eh.performZoom(-1) // zoom out
		}
	}
}

// handleMoveKey tracks held movement keys. Opposing keys cancel out.
func (eh *EventHandlers) handleMoveKey(action glfw.Action, dx, dy float64) {
	switch action {
	case glfw.Press:
		eh.moveX = math.Max(-1, math.Min(1, eh.moveX+dx))
		eh.moveY = math.Max(-1, math.Min(1, eh.moveY+dy))
	case glfw.Release:
		eh.moveX = math.Max(-1, math.Min(1, eh.moveX-dx))
		eh.moveY = math.Max(-1, math.Min(1, eh.moveY-dy))
	case glfw.Repeat:
		// Ignore repeat events - movement is applied per frame.
	}
}

// handleContinuousMovement moves the player while movement keys are held.
func (eh *EventHandlers) handleContinuousMovement(dt time.Duration) {
	if eh.moveX == 0 && eh.moveY == 0 {
		return // nothing to do
	}
	norm := math.Hypot(eh.moveX, eh.moveY)
	step := playerSpeed * dt.Seconds() / norm
	eh.application.View.MovePlayer(eh.moveX*step, eh.moveY*step)
}

// handleSpawnKey handles space presses and releases.
func (eh *EventHandlers) handleSpawnKey(action glfw.Action) {
	switch action {
	case glfw.Press:
		eh.spaceHeld = true
		eh.application.SpawnAround(eh.parseCount())
		eh.lastSpawnTime = time.Now()
	case glfw.Release:
		eh.spaceHeld = false
	case glfw.Repeat:
		// Ignore repeat events - we handle continuous spawning ourselves to
		// ensure consistent timing.
	}
}

// handleContinuousSpawning spawns enemies while space is held.
func (eh *EventHandlers) handleContinuousSpawning() {
	if !eh.spaceHeld {
		return // nothing to do
	}

	now := time.Now()
	if now.Sub(eh.lastSpawnTime) < repeatInterval {
		return // not enough time has passed since the last spawn
	}
	eh.application.SpawnAround(baseSpawnCount)
	eh.lastSpawnTime = now
}

// handleMouseButton strikes the enemies around the player on left click.
func (eh *EventHandlers) handleMouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft || action != glfw.Press {
		return // nothing to do
	}
	eh.application.Strike()
}

// performZoom zooms the view around the player.
func (eh *EventHandlers) performZoom(zoomDelta float64) {
	view := eh.application.View
	view.SetZoom(view.Zoom * (1.0 + zoomDelta*0.15))
}

// parseCount consumes the input buffer as a spawn count.
func (eh *EventHandlers) parseCount() int {
	input := eh.inputBuffer
	eh.inputBuffer = ""
	if input == "" {
		return baseSpawnCount
	}
	n, err := strconv.Atoi(input)
	if err != nil || n <= 0 {
		return baseSpawnCount
	}
	return n
}
