package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"strokesynth"
	"strokesynth/internal/music"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
	scanStyle   = lipgloss.NewStyle().Reverse(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
)

// barWidth is the rendered width of the scan bar.
const barWidth = 64

type noteMsg strokesynth.SequenceEvent
type scanMsg int
type endMsg struct{}

type model struct {
	seq      *strokesynth.Sequencer
	noteCh   chan strokesynth.SequenceEvent
	scanCh   chan int
	endCh    chan struct{}
	width    int
	lastNote string
	played   int
	total    int
	done     bool
	quitting bool
}

func listenForNotes(ch chan strokesynth.SequenceEvent) tea.Cmd {
	return func() tea.Msg {
		return noteMsg(<-ch)
	}
}

func listenForScan(ch chan int) tea.Cmd {
	return func() tea.Msg {
		return scanMsg(<-ch)
	}
}

func listenForEnd(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return endMsg{}
	}
}

func (m model) Init() tea.Cmd {
	m.seq.Start()
	return tea.Batch(
		listenForNotes(m.noteCh),
		listenForScan(m.scanCh),
		listenForEnd(m.endCh),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.seq.Stop()
			m.quitting = true
			return m, tea.Quit

		case " ":
			m.seq.Pause()

		case "s":
			m.seq.Stop()
			m.played = 0
			m.done = false
			m.seq.Start()
			return m, listenForEnd(m.endCh)
		}

	case noteMsg:
		ev := strokesynth.SequenceEvent(msg)
		m.lastNote = fmt.Sprintf("%s vel=%d %s", music.NoteName(ev.Note), ev.Velocity, ev.Instrument)
		m.played++
		return m, listenForNotes(m.noteCh)

	case scanMsg:
		return m, listenForScan(m.scanCh)

	case endMsg:
		m.done = true
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	info := m.seq.Info()

	// Scan bar with the playhead reversed.
	pos := 0
	if m.width > 0 {
		pos = info.ScanPosition * barWidth / m.width
	}
	if pos >= barWidth {
		pos = barWidth - 1
	}
	var cells []string
	for i := 0; i < barWidth; i++ {
		if i == pos && info.Playing {
			cells = append(cells, scanStyle.Render("|"))
		} else {
			cells = append(cells, dimStyle.Render("·"))
		}
	}
	bar := strings.Join(cells, "")

	playState := "stop"
	switch {
	case m.done:
		playState = "done"
	case info.Paused:
		playState = "pause"
	case info.Playing:
		playState = "play"
	}

	status := statusStyle.Render(fmt.Sprintf("%s %3dbpm %s  %5.2fs  %d/%d",
		playState, info.BPM, info.Mode, info.CurrentTime, m.played, m.total))
	last := activeStyle.Render(m.lastNote)
	help := dimStyle.Render("space:pause  s:restart  q:quit")

	return fmt.Sprintf("\n%s\n%s\n%s\n\n%s\n", bar, status, last, help)
}

func main() {
	var (
		projectPath = flag.String("project", "", "path to a project JSON file")
		mode        = flag.String("mode", "scan", "playback mode: scan|timeline")
		silent      = flag.Bool("silent", false, "skip audio device initialization")
	)
	flag.Parse()

	if *projectPath == "" {
		log.Fatal("missing -project")
	}
	project, err := strokesynth.LoadProject(*projectPath)
	if err != nil {
		log.Fatal(err)
	}

	var opts []strokesynth.Option
	if *silent {
		opts = append(opts, strokesynth.WithSilent())
	}
	engine := strokesynth.NewEngine(strokesynth.Config{
		Width:      project.Width,
		Height:     project.Height,
		BPM:        project.BPM,
		Instrument: strokesynth.Piano,
		Scale:      project.Scale,
		Root:       project.RootNote,
	}, opts...)

	seq := strokesynth.NewSequencer(engine)
	seq.SetProject(project)
	switch *mode {
	case "scan":
		seq.SetMode(strokesynth.ModeScan)
	case "timeline":
		seq.SetMode(strokesynth.ModeTimeline)
	default:
		log.Fatalf("invalid -mode %q (expected scan|timeline)", *mode)
	}

	noteCh := make(chan strokesynth.SequenceEvent, 16)
	scanCh := make(chan int, 16)
	endCh := make(chan struct{}, 1)
	seq.OnNotePlay = func(ev strokesynth.SequenceEvent) {
		select {
		case noteCh <- ev:
		default:
		}
	}
	seq.OnScanPosition = func(pos int) {
		select {
		case scanCh <- pos:
		default:
		}
	}
	seq.OnPlaybackEnd = func() {
		select {
		case endCh <- struct{}{}:
		default:
		}
	}

	seq.Prepare()
	m := model{
		seq:    seq,
		noteCh: noteCh,
		scanCh: scanCh,
		endCh:  endCh,
		width:  project.Width,
		total:  len(seq.Events()),
	}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
