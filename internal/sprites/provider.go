// Package sprites generates enemy bitmaps procedurally. Each enemy type is a
// star-shaped silhouette, triangulated with earcut and rasterized with an
// outline and a body fill from a random HSV palette. Elite variants get a
// spikier silhouette with a shimmered palette.
//
// A Provider becomes ready lazily, after a configurable number of readiness
// polls, to exercise renderers that must cope with sprites that are not yet
// loaded.
package sprites

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"strings"

	"github.com/irfansharif/horde/internal/atlas"
	"github.com/irfansharif/horde/internal/palette"
)

var spritesLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("HORDE_DEBUG_SPRITES") == "1" {
		spritesLogger = log.New(os.Stdout, "[sprites] ", log.Ltime|log.Lmsgprefix)
	}
}

// Kind describes one enemy type's silhouette.
type Kind struct {
	Key       string
	Side      int     // bitmap side in pixels
	Points    int     // outer vertices of the star
	Spikiness float64 // in [0, 1)
}

// DefaultKinds are the base enemy types of the demo.
var DefaultKinds = []Kind{
	{Key: "grunt", Side: 64, Points: 6, Spikiness: 0.2},
	{Key: "runner", Side: 48, Points: 3, Spikiness: 0.1},
	{Key: "spitter", Side: 64, Points: 8, Spikiness: 0.45},
	{Key: "tank", Side: 96, Points: 5, Spikiness: 0.15},
	{Key: "swarmer", Side: 32, Points: 4, Spikiness: 0.35},
}

// DefaultElites are the elite variant kinds of the demo.
var DefaultElites = []string{"brute", "shielded", "volatile"}

// eliteSide is the bitmap side of every elite sprite.
const eliteSide = 80

// Config configures a Provider.
type Config struct {
	Seed        int64
	Kinds       []Kind
	Elites      []string
	WarmupPolls int // Ready reports false for this many calls
}

// DefaultConfig returns the demo configuration.
func DefaultConfig() Config {
	return Config{
		Seed:        1,
		Kinds:       DefaultKinds,
		Elites:      DefaultElites,
		WarmupPolls: 3,
	}
}

// Provider generates and caches sprites. It is not safe for concurrent use.
type Provider struct {
	cfg     Config
	rng     *rand.Rand
	polls   int
	version uint64

	kinds   map[string]Kind
	elites  map[string]bool
	cache   map[string]*image.NRGBA
	palette map[string]palette.Palette
}

// NewProvider creates a provider. No sprite is rendered until requested.
func NewProvider(cfg Config) *Provider {
	p := &Provider{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		version: 1,
		kinds:   make(map[string]Kind),
		elites:  make(map[string]bool),
		cache:   make(map[string]*image.NRGBA),
		palette: make(map[string]palette.Palette),
	}
	for _, k := range cfg.Kinds {
		p.kinds[k.Key] = k
	}
	for _, e := range cfg.Elites {
		p.elites[e] = true
	}
	return p
}

// Ready reports whether sprites may be requested.
func (p *Provider) Ready() bool {
	if p.polls < p.cfg.WarmupPolls {
		p.polls++
		return false
	}
	return true
}

// SpriteVersion increases whenever the set or look of sprites changes.
func (p *Provider) SpriteVersion() uint64 { return p.version }

// Keys returns every available sprite key, base types and elite variants, in
// sorted order.
func (p *Provider) Keys() []string {
	keys := make([]string, 0, len(p.kinds)+len(p.elites))
	for k := range p.kinds {
		keys = append(keys, k)
	}
	for e := range p.elites {
		keys = append(keys, atlas.EliteKey(e))
	}
	sort.Strings(keys)
	return keys
}

// Sprite returns the bitmap for key, rendering it on first use.
func (p *Provider) Sprite(key string) (image.Image, bool) {
	if img, ok := p.cache[key]; ok {
		return img, true
	}
	img, err := p.render(key)
	if err != nil {
		log.Printf("WARNING: sprite %q: %v", key, err)
		return nil, false
	}
	if img == nil {
		return nil, false
	}
	p.cache[key] = img
	return img, true
}

// AddKind registers a new enemy type and bumps the sprite version.
func (p *Provider) AddKind(k Kind) {
	p.kinds[k.Key] = k
	p.bump()
}

// AddElite registers a new elite variant and bumps the sprite version.
func (p *Provider) AddElite(variant string) {
	p.elites[variant] = true
	p.bump()
}

// Recolor discards every cached sprite and palette so that they are rendered
// afresh, and bumps the sprite version.
func (p *Provider) Recolor() {
	p.cache = make(map[string]*image.NRGBA)
	p.palette = make(map[string]palette.Palette)
	p.bump()
}

func (p *Provider) bump() {
	p.version++
	spritesLogger.Printf("sprite version %d (%d kinds, %d elites)", p.version, len(p.kinds), len(p.elites))
}

func (p *Provider) paletteFor(key string) palette.Palette {
	pal, ok := p.palette[key]
	if !ok {
		pal = palette.RandomPalette(p.rng)
		p.palette[key] = pal
	}
	return pal
}

// render draws the sprite for key; it returns nil for unknown keys.
func (p *Provider) render(key string) (*image.NRGBA, error) {
	var (
		side, points int
		spikiness    float64
		pal          palette.Palette
	)
	if k, ok := p.kinds[key]; ok {
		side, points, spikiness = k.Side, k.Points, k.Spikiness
		pal = p.paletteFor(key)
	} else if variant, ok := strings.CutPrefix(key, atlas.ElitePrefix); ok && p.elites[variant] {
		side, points, spikiness = eliteSide, 10, 0.5
		pal = palette.Shimmered(p.paletteFor(key), 1, p.rng)
	} else {
		return nil, nil
	}
	if side <= 0 {
		return nil, fmt.Errorf("invalid side %d", side)
	}

	poly := Silhouette(side, points, spikiness, p.rng)
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	c := float64(side) / 2
	for _, layer := range []struct {
		scale float64
		col   color.NRGBA
	}{
		{1, pal[palette.Outline]},
		{0.8, pal[palette.Body]},
		{0.35, pal[2]},
	} {
		tris, err := Triangulate(scaleAbout(poly, c, c, layer.scale))
		if err != nil {
			return nil, err
		}
		Fill(img, tris, layer.col)
	}
	spritesLogger.Printf("rendered %q (%dpx, %d vertices)", key, side, len(poly))
	return img, nil
}
