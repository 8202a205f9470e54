package strokesynth

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"strokesynth/internal/music"
)

// Point is the smallest drawing unit: a canvas position with a timestamp
// relative to the start of its stroke.
type Point struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	T         float64 `json:"t"`
	Thickness int     `json:"thickness"`
}

// Stroke is one continuous drawing gesture, tagged with the instrument
// active while it was drawn.
type Stroke struct {
	Instrument Instrument `json:"instrument"`
	Color      [3]uint8   `json:"color"`
	Points     []Point    `json:"points"`
	StartT     float64    `json:"start_t"`
	EndT       float64    `json:"end_t"`
	ID         string     `json:"stroke_id"`
}

// NewStroke creates an empty stroke for the instrument, colored from the
// instrument table.
func NewStroke(instrument Instrument) *Stroke {
	return &Stroke{
		Instrument: instrument,
		Color:      instrument.Info().Color,
		ID:         fmt.Sprintf("stroke_%d", time.Now().UnixMilli()),
	}
}

// AddPoint appends a point and keeps the stroke's time span current.
func (s *Stroke) AddPoint(x, y, thickness int, relativeT float64) {
	s.Points = append(s.Points, Point{X: x, Y: y, T: relativeT, Thickness: thickness})
	if len(s.Points) == 1 {
		s.StartT = relativeT
	}
	s.EndT = relativeT
}

// Duration returns the stroke's drawn time span.
func (s *Stroke) Duration() float64 {
	return s.EndT - s.StartT
}

// Project is a complete drawn performance: ordered strokes of ordered
// points plus the musical settings they were drawn under.
type Project struct {
	Name      string      `json:"name"`
	BPM       int         `json:"bpm"`
	Quantize  music.Grid  `json:"quantize"`
	Scale     music.Scale `json:"scale"`
	RootNote  int         `json:"root_note"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Strokes   []*Stroke   `json:"strokes"`
	CreatedAt string      `json:"created_at"`
	Duration  float64     `json:"duration"`
}

// NewProject returns a project with the standard defaults.
func NewProject(name string) *Project {
	return &Project{
		Name:      name,
		BPM:       120,
		Quantize:  music.GridEighth,
		Scale:     music.DefaultScale,
		RootNote:  music.DefaultRoot,
		Width:     640,
		Height:    480,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
}

// AddStroke appends a stroke and updates the total duration.
func (p *Project) AddStroke(s *Stroke) {
	p.Strokes = append(p.Strokes, s)
	if s.EndT > p.Duration {
		p.Duration = s.EndT
	}
}

// Clear removes all strokes.
func (p *Project) Clear() {
	p.Strokes = nil
	p.Duration = 0
}

// PointCount returns the total number of points across all strokes.
func (p *Project) PointCount() int {
	n := 0
	for _, s := range p.Strokes {
		n += len(s.Points)
	}
	return n
}

// JSON encodes the project in its stored format.
func (p *Project) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Save writes the project as JSON.
func (p *Project) Save(path string) error {
	data, err := p.JSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadProject reads a project saved by Save. Missing musical settings
// fall back to defaults so old files keep playing.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseProject(data)
}

// ParseProject decodes a project from JSON.
func ParseProject(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if p.BPM <= 0 {
		p.BPM = 120
	}
	if p.Quantize == "" {
		p.Quantize = music.GridEighth
	}
	if !p.Scale.Valid() {
		p.Scale = music.DefaultScale
	}
	if p.RootNote <= 0 {
		p.RootNote = music.DefaultRoot
	}
	if p.Width <= 0 {
		p.Width = 640
	}
	if p.Height <= 0 {
		p.Height = 480
	}
	return &p, nil
}
