package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vsariola/tahti"
	"github.com/vsariola/tahti/config"
	"github.com/vsariola/tahti/devices"
	"github.com/vsariola/tahti/engine"
	"github.com/vsariola/tahti/gomidi"
	"github.com/vsariola/tahti/meter"
	"github.com/vsariola/tahti/oto"
	"github.com/vsariola/tahti/version"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the working directory.")
	play := flag.Bool("p", false, "Play the input songs (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered song as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered song as .wav file. By default, saves stereo float32 buffer to disk.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	versionFlag := flag.Bool("v", false, "Print version.")
	configFile := flag.String("config", "", "YAML file with the render configuration. Flags override the values in the file.")
	workers := flag.Int("workers", -1, "Number of worker goroutines besides the main one. Negative means one per CPU.")
	blockSize := flag.Int("block", engine.DefaultBlockSize, "Maximum number of samples rendered in one pass of the track graph.")
	sampleRate := flag.Int("rate", 0, "Sample rate for songs that do not define one.")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn or error.")
	logFormat := flag.String("log-format", "text", "Log format: text or json.")
	midiFile := flag.String("midi", "", "Standard MIDI file whose tracks replace the lanes of the songs, in order.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "block":
			cfg.BlockSize = *blockSize
		case "rate":
			cfg.SampleRate = *sampleRate
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "c":
			cfg.PCM16 = *pcm
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stderr)
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var audioContext *oto.Context
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				_, err := os.Stdout.Write(contents)
				return err
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			logger.Info("File written.", "file", f, "bytes", len(contents))
			return nil
		}
		song, err := tahti.ReadSongFile(filename)
		if err != nil {
			return err
		}
		if song.SampleRate == 0 && cfg.SampleRate > 0 {
			song.SampleRate = cfg.SampleRate
		}
		if *midiFile != "" {
			imp, err := gomidi.ReadFile(*midiFile, song.SamplesPerSecond())
			if err != nil {
				return err
			}
			for i, lane := range imp.Lanes {
				if i < len(song.Lanes) {
					song.Lanes[i] = lane
				} else {
					song.Lanes = append(song.Lanes, lane)
				}
			}
			logger.Debug("MIDI lanes imported.", "file", *midiFile, "lanes", len(imp.Lanes), "bpm", imp.BPM)
		}
		playSong := *play
		if playSong && audioContext == nil {
			if audioContext, err = oto.NewContext(song.SamplesPerSecond()); err != nil {
				return fmt.Errorf("could not acquire oto audio context: %v", err)
			}
		}
		if playSong && audioContext.SampleRate() != song.SamplesPerSecond() {
			logger.Warn("Song not played: the sample rate differs from the audio device.", "file", filename, "sampleRate", song.SamplesPerSecond(), "device", audioContext.SampleRate())
			playSong = false
		}
		opts := cfg.RendererOptions(logger.With("file", filename))
		if !*rawOut && !*wavOut {
			if !playSong {
				return nil
			}
			return stream(song, opts, audioContext, logger)
		}
		buffer, err := engine.Play(song, devices.Factory{}, opts...)
		if err != nil {
			return fmt.Errorf("could not render song: %w", err)
		}
		levels := meter.Measure(buffer, song.SamplesPerSecond())
		logger.Info("Song rendered.", "file", filename, "frames", len(buffer), "loudness", levels.Integrated, "truePeak", max(levels.TruePeak[0], levels.TruePeak[1]))
		if *rawOut {
			raw, err := buffer.Raw(cfg.PCM16)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			wav, err := buffer.Wav(cfg.PCM16, song.SamplesPerSecond())
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if playSong {
			player := audioContext.Play(oto.NewBufferReader(buffer))
			defer player.Close()
			return player.Wait()
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			jsonfiles, err := filepath.Glob(filepath.Join(param, "*.json"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for json files: %v\n", param, err)
				retval = 1
				continue
			}
			ymlfiles, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			files := append(ymlfiles, jsonfiles...)
			for _, file := range files {
				err := process(file)
				if err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			err := process(param)
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// stream plays the song while rendering it, without keeping the whole song
// in memory.
func stream(song tahti.Song, opts []engine.Option, audioContext *oto.Context, logger *slog.Logger) error {
	r, err := engine.NewRenderer(song, devices.Factory{}, opts...)
	if err != nil {
		return fmt.Errorf("could not create renderer: %w", err)
	}
	defer r.Close()
	logger.Info("Playing.", "frames", r.Length(), "sampleRate", r.SampleRate())
	player := audioContext.Play(engine.NewStream(r, r.Length()))
	defer player.Close()
	return player.Wait()
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "tahti command line utility for rendering and playing .yml/.json song files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
