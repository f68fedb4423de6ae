package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/metalblueberry/guitarbuddy/pkg/engine"
	"github.com/metalblueberry/guitarbuddy/pkg/metronome"
	"github.com/metalblueberry/guitarbuddy/pkg/note"
	"github.com/metalblueberry/guitarbuddy/pkg/pitch"
	"github.com/metalblueberry/guitarbuddy/pkg/scheduler"
	"github.com/metalblueberry/guitarbuddy/pkg/tuner"
)

// spectrumCeiling is the highest frequency drawn in the spectrum view.
const spectrumCeiling = 1000.0

const flashLength = 100 * time.Millisecond

var stringKeys = []ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3,
	ebiten.KeyDigit4, ebiten.KeyDigit5, ebiten.KeyDigit6,
}

var (
	white  = color.RGBA{0xff, 0xff, 0xff, 0xff}
	green  = color.RGBA{0x40, 0xe0, 0x50, 0xff}
	yellow = color.RGBA{0xf0, 0xd0, 0x30, 0xff}
	red    = color.RGBA{0xf0, 0x40, 0x30, 0xff}
	grey   = color.RGBA{0x60, 0x60, 0x60, 0xff}
)

// Game draws the tuner and metronome state and maps keys to actions.
type Game struct {
	ctx       context.Context
	engine    *engine.Engine
	tuner     *tuner.Session
	metronome *metronome.Session
	logger    *zap.Logger
	flash     beatFlash

	mu      sync.Mutex
	message string

	vertices []ebiten.Vertex
	indices  []uint16
}

// beatFlash remembers the last beat reported by the metronome.
type beatFlash struct {
	mu     sync.Mutex
	at     time.Time
	accent bool
}

func (f *beatFlash) beat(ev scheduler.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.at = time.Now()
	f.accent = ev.Accent()
}

func (f *beatFlash) color(now time.Time) (color.Color, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.at.IsZero() || now.Sub(f.at) > flashLength {
		return nil, false
	}
	if f.accent {
		return red, true
	}
	return white, true
}

func (g *Game) report(err error) {
	g.logger.Warn("Action failed", zap.Error(err))
	g.mu.Lock()
	g.message = err.Error()
	g.mu.Unlock()
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.toggleTuner()
	case inpututil.IsKeyJustPressed(ebiten.KeyM):
		g.toggleMetronome()
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowUp):
		g.metronome.ChangeTempo(metronome.TempoStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyArrowDown):
		g.metronome.ChangeTempo(-metronome.TempoStep)
	case inpututil.IsKeyJustPressed(ebiten.KeyT):
		if err := g.engine.PlayTestTone(); err != nil {
			g.report(err)
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		g.tuner.ClearTarget()
		g.engine.StopReference()
	}

	for i, key := range stringKeys {
		if inpututil.IsKeyJustPressed(key) {
			if err := g.tuner.PlayReference(note.StandardTuning[i].Name); err != nil {
				g.report(err)
			}
		}
	}
	return nil
}

func (g *Game) toggleTuner() {
	if g.tuner.State() == tuner.Listening {
		g.tuner.Stop()
		return
	}
	if err := g.tuner.Start(g.ctx); err != nil {
		g.report(err)
	}
}

func (g *Game) toggleMetronome() {
	if g.metronome.State() == metronome.Running {
		g.metronome.Stop()
		return
	}
	if err := g.metronome.Start(g.ctx); err != nil {
		g.report(err)
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	reading, ok := g.tuner.Latest()

	wave := screen.SubImage(image.Rect(0, h/6, w, h/2)).(*ebiten.Image)
	spectrum := screen.SubImage(image.Rect(0, h/2, w, 5*h/6)).(*ebiten.Image)
	indicator := screen.SubImage(image.Rect(0, 5*h/6, w, h)).(*ebiten.Image)

	if ok && len(reading.Samples) > 0 {
		samples := make([]float64, len(reading.Samples))
		for i, s := range reading.Samples {
			samples[i] = float64(s)
		}
		g.drawWave(wave, samples, 1, white)
		g.drawSpectrum(spectrum, reading)
	}
	g.drawIndicator(indicator, reading)

	if c, on := g.flash.color(time.Now()); on {
		box := screen.SubImage(image.Rect(w-40, 8, w-8, 40)).(*ebiten.Image)
		box.Fill(c)
	}

	ebitenutil.DebugPrint(screen, g.status(reading, ok))
}

func (g *Game) status(r tuner.Reading, ok bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "tuner %s", g.tuner.State())
	if ok && r.HasNote {
		fmt.Fprintf(&b, "  %s  %.2f Hz", r.Note, r.Estimate.Frequency)
	}
	if target, set := g.tuner.Target(); set {
		fmt.Fprintf(&b, "  target %.2f Hz", target)
		if ok && r.HasCents {
			fmt.Fprintf(&b, "  %+d cents %s", r.Cents, r.Accuracy)
		}
	}
	b.WriteString("\n")

	t := g.metronome.Tempo()
	fmt.Fprintf(&b, "metronome %s  %d bpm  %d beats\n", g.metronome.State(), t.BPM, t.BeatsPerMeasure)
	b.WriteString("space tuner  m metronome  up/down tempo  1-6 strings  t test tone  esc clear\n")

	g.mu.Lock()
	if g.message != "" {
		b.WriteString(g.message)
	}
	g.mu.Unlock()
	return b.String()
}

func (g *Game) drawSpectrum(screen *ebiten.Image, r tuner.Reading) {
	mags := pitch.Spectrum(r.Samples)
	if len(mags) == 0 || r.SampleRate <= 0 {
		return
	}
	// bin i covers i*sr/(2*len(mags)) Hz
	bins := int(spectrumCeiling * 2 * float64(len(mags)) / r.SampleRate)
	if bins > len(mags) {
		bins = len(mags)
	}
	mags = mags[:bins]

	peak := 0.0
	for _, m := range mags {
		if m > peak {
			peak = m
		}
	}
	if peak == 0 {
		return
	}
	// drawWave draws around the middle line, so map 0..peak to 0..-1
	scaled := make([]float64, len(mags))
	for i, m := range mags {
		scaled[i] = -m / peak
	}
	g.drawWave(screen, scaled, 1, green)
}

func (g *Game) drawIndicator(screen *ebiten.Image, r tuner.Reading) {
	b := screen.Bounds()
	mid := float32(b.Min.Y + b.Dy()/2)
	width := float32(b.Dx())

	var scale vector.Path
	scale.MoveTo(float32(b.Min.X)+8, mid)
	scale.LineTo(float32(b.Min.X)+width-8, mid)
	center := float32(b.Min.X) + width/2
	scale.MoveTo(center, mid-12)
	scale.LineTo(center, mid+12)
	g.stroke(screen, &scale, 1, grey)

	if !r.HasCents {
		return
	}
	x := float32(b.Min.X) + 8 + (width-16)*float32(r.Position)/100
	var marker vector.Path
	marker.MoveTo(x, mid-20)
	marker.LineTo(x, mid+20)
	g.stroke(screen, &marker, 4, accuracyColor(r.Accuracy))
}

func accuracyColor(a note.Accuracy) color.RGBA {
	switch a {
	case note.InTune:
		return green
	case note.Close:
		return yellow
	default:
		return red
	}
}

var (
	whiteImage = ebiten.NewImage(3, 3)

	// whiteSubImage is an internal sub image of whiteImage.
	// Use whiteSubImage at DrawTriangles instead of whiteImage in order to avoid bleeding edges.
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

func (g *Game) drawWave(screen *ebiten.Image, data []float64, size float64, clr color.RGBA) {
	var path vector.Path
	mid := screen.Bounds().Min.Y + screen.Bounds().Dy()/2
	width := screen.Bounds().Dx()

	path.MoveTo(0, float32(mid))

	scale := float64(screen.Bounds().Dy()/2) / size
	for i := range data {
		y := float32((data[i] * scale) + float64(mid))
		path.LineTo(float32(i*width)/float32(len(data)), y)
	}

	g.stroke(screen, &path, 1, clr)
}

func (g *Game) stroke(screen *ebiten.Image, path *vector.Path, width float32, clr color.RGBA) {
	op := &vector.StrokeOptions{}
	op.Width = width
	vs, is := path.AppendVerticesAndIndicesForStroke(g.vertices[:0], g.indices[:0], op)
	for i := range vs {
		vs[i].SrcX = 1
		vs[i].SrcY = 1
		vs[i].ColorR = float32(clr.R) / 0xff
		vs[i].ColorG = float32(clr.G) / 0xff
		vs[i].ColorB = float32(clr.B) / 0xff
		vs[i].ColorA = float32(clr.A) / 0xff
	}
	screen.DrawTriangles(vs, is, whiteSubImage, &ebiten.DrawTrianglesOptions{
		AntiAlias: false,
	})
	g.vertices, g.indices = vs, is
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
