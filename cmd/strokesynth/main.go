package main

import (
	"flag"
	"fmt"
	"log"

	"strokesynth"
	"strokesynth/internal/music"
)

func main() {
	var (
		projectPath = flag.String("project", "", "path to a project JSON file")
		mode        = flag.String("mode", "scan", "playback mode: scan|timeline")
		wavPath     = flag.String("wav", "", "export the performance to a WAV file and exit")
		midiPath    = flag.String("midi", "", "export the performance to a MIDI file and exit")
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

	playbackMode, err := parseMode(*mode)
	if err != nil {
		log.Fatal(err)
	}

	var opts []strokesynth.Option
	if *silent || *wavPath != "" || *midiPath != "" {
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
	seq.SetMode(playbackMode)

	if *wavPath != "" || *midiPath != "" {
		exportProject(engine, seq, *wavPath, *midiPath)
		return
	}

	if !engine.Ready() {
		log.Println("no audio device; running silent")
	}

	done := make(chan struct{})
	seq.OnNotePlay = func(ev strokesynth.SequenceEvent) {
		fmt.Printf("%6.2fs  %-4s vel=%-3d %s\n", ev.Time, music.NoteName(ev.Note), ev.Velocity, ev.Instrument)
	}
	seq.OnPlaybackEnd = func() {
		close(done)
	}
	seq.Start()
	<-done
	fmt.Println("playback completed")
}

// exportProject renders the prepared event list offline instead of
// playing it back.
func exportProject(engine *strokesynth.Engine, seq *strokesynth.Sequencer, wavPath, midiPath string) {
	seq.Prepare()
	events := seq.Events()
	notes := make([]strokesynth.NoteEvent, 0, len(events))
	for _, ev := range events {
		notes = append(notes, strokesynth.NoteEvent{
			Note:       ev.Note,
			Velocity:   ev.Velocity,
			DurationMS: int(ev.Duration * 1000),
			Instrument: ev.Instrument,
			Timestamp:  ev.Time,
			X:          ev.X,
			Y:          ev.Y,
		})
	}
	if wavPath != "" {
		if err := engine.ExportWAVFile(wavPath, notes); err != nil {
			log.Fatalf("wav export: %v", err)
		}
		fmt.Printf("wrote %s (%d notes)\n", wavPath, len(notes))
	}
	if midiPath != "" {
		if err := engine.ExportMIDIFile(midiPath, notes); err != nil {
			log.Fatalf("midi export: %v", err)
		}
		fmt.Printf("wrote %s (%d notes)\n", midiPath, len(notes))
	}
}

func parseMode(name string) (strokesynth.PlaybackMode, error) {
	switch name {
	case "scan":
		return strokesynth.ModeScan, nil
	case "timeline":
		return strokesynth.ModeTimeline, nil
	default:
		return "", fmt.Errorf("invalid -mode %q (expected scan|timeline)", name)
	}
}
