package app

import (
	"fmt"
	"log"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/irfansharif/horde/internal/render"
	"github.com/irfansharif/horde/internal/sprites"
)

const (
	strikeRadius = 160.0 // world units around the player
	strikeDamage = 4.0
)

// App encapsulates the main application state and logic.
type App struct {
	Window   *glfw.Window
	Renderer *render.Renderer
	Sprites  *sprites.Provider
	Swarm    *Swarm
	View     *View

	mutations int // procedurally added enemy kinds
}

// NewApp creates a new application instance around an existing renderer.
func NewApp(window *glfw.Window, renderer *render.Renderer, view *View, seed int64) *App {
	cfg := sprites.DefaultConfig()
	cfg.Seed = seed
	kinds := make([]string, len(cfg.Kinds))
	for i, k := range cfg.Kinds {
		kinds[i] = k.Key
	}
	return &App{
		Window:   window,
		Renderer: renderer,
		Sprites:  sprites.NewProvider(cfg),
		Swarm:    NewSwarm(seed, kinds, cfg.Elites),
		View:     view,
	}
}

// SpawnAround spawns n enemies just beyond the visible area around the
// player.
func (app *App) SpawnAround(n int) {
	dw, dh := app.View.DesignSize()
	radius := 0.5 * float64(max(dw, dh))
	app.Swarm.Spawn(n, app.View.Player, radius)
}

// Step advances the simulation by dt.
func (app *App) Step(dt time.Duration) {
	app.Swarm.Update(dt, app.View.Player)
	if n := app.Swarm.Reap(); n > 0 {
		log.Printf("%d enemies defeated, %d remain", n, app.Swarm.Len())
	}
}

// Strike damages the enemies around the player.
func (app *App) Strike() int {
	return app.Swarm.Strike(app.View.Player, strikeRadius, strikeDamage)
}

// Mutate introduces a new enemy kind. The sprite version changes, so the
// renderer rebuilds its atlas.
func (app *App) Mutate() string {
	app.mutations++
	kind := sprites.Kind{
		Key:       fmt.Sprintf("mutant-%d", app.mutations),
		Side:      40 + 8*(app.mutations%6),
		Points:    5 + app.mutations%7,
		Spikiness: 0.2 + 0.05*float64(app.mutations%6),
	}
	app.Sprites.AddKind(kind)
	app.Swarm.AddKind(kind.Key)
	return kind.Key
}

// ToggleImposters flips far-tier imposter substitution and returns the new
// setting.
func (app *App) ToggleImposters() bool {
	policy := app.Renderer.Policy()
	on := !policy.Config().Imposters
	policy.SetImposters(on)
	return on
}

// RenderFrame draws the current state of the horde.
func (app *App) RenderFrame() render.Stats {
	return app.Renderer.Render(render.Frame{
		Entities: app.Swarm.Snapshots(),
		Sprites:  app.Sprites,
		Camera:   app.View.Camera(),
		Player:   app.View.Player,
	})
}
