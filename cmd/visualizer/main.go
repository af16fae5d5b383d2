package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/guidoenr/tabviz/internal/app"
	"github.com/guidoenr/tabviz/internal/audio"
	"github.com/guidoenr/tabviz/internal/dialog"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/present"
	"github.com/guidoenr/tabviz/internal/web"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		width       = flag.Int("width", 0, "Canvas width in pixels (0 follows the terminal)")
		height      = flag.Int("height", 0, "Canvas height in pixels (0 follows the terminal)")
		targetFPS   = flag.Float64("fps", 60, "Target frames per second")
		deviceName  = flag.String("audio-device", "", "Optional PortAudio device name (substring match)")
		bufferSize  = flag.Int("buffer-size", 4096, "Capture ring buffer size in samples")
		listDevs    = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
		noAudio     = flag.Bool("no-audio", false, "Capture a synthetic signal instead of a sound card")
		mode        = flag.String("mode", string(params.ModeBars), "Visualization mode (bars|wave|circular|particles)")
		themeName   = flag.String("theme", "neon", "Colour theme (neon|sunset|ocean|forest|fire)")
		sensitivity = flag.Float64("sensitivity", 1.5, "Amplitude multiplier (0.1-5)")
		smoothing   = flag.Float64("smoothing", 0.8, "Analyzer time smoothing (0-1)")
		debug       = flag.Bool("debug", false, "Enable verbose logging")
		showStatus  = flag.Bool("status", true, "Display status bar")
		noColor     = flag.Bool("no-color", false, "Disable ANSI color output")
		palette     = flag.String("palette", "default", "Glyph palette without color ("+paletteList()+")")
		window      = flag.Bool("window", false, "Open an SDL window (needs a build with -tags sdl)")
		webPort     = flag.Int("web-port", 0, "Serve the web control page on this port (0 disables)")
		autoStart   = flag.Bool("auto-start", false, "Start listening immediately")
		assumeYes   = flag.Bool("yes", false, "Grant capture without asking")
		profilePath = flag.String("profile", "", "Write per-frame timings as CSV to this file")
	)

	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}

	if *listDevs {
		listDevices(log)
		return
	}

	parsedMode, ok := params.ParseMode(*mode)
	if !ok {
		log.Fatalf("invalid mode %q (want %s)", *mode, strings.Join(params.ModeNames(), "|"))
	}
	visual := params.Config{
		Mode:        parsedMode,
		Theme:       *themeName,
		Sensitivity: params.ClampSensitivity(*sensitivity),
		Smoothing:   params.ClampSmoothing(*smoothing),
	}
	if err := visual.Validate(); err != nil {
		log.Fatalf("invalid visual settings: %v", err)
	}

	var prompt audio.Prompter = dialog.Native{}
	var alerter app.Alerter = dialog.Native{}
	if *assumeYes {
		prompt = dialog.AutoApprove{Log: log}
		alerter = dialog.AutoApprove{Log: log}
	}

	var platform audio.Platform
	if *noAudio {
		platform = &audio.SyntheticPlatform{WithVideo: true}
	} else {
		if err := audio.Initialize(); err != nil {
			log.Fatalf("failed to initialize PortAudio: %v", err)
		}
		defer audio.Terminate()
		platform = &audio.PortAudioPlatform{
			Capture: audio.Config{DeviceName: *deviceName, BufferSize: *bufferSize},
			Prompt:  prompt,
			Log:     log,
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Config{
		Width:       *width,
		Height:      *height,
		TargetFPS:   *targetFPS,
		Visual:      visual,
		Terminal:    true,
		Output:      os.Stdout,
		Color:       !*noColor,
		Palette:     *palette,
		StatusBar:   *showStatus,
		Window:      *window,
		Keyboard:    true,
		AutoStart:   *autoStart,
		ProfilePath: *profilePath,
		Platform:    platform,
		Alerter:     alerter,
		Log:         log,
	})
	if err != nil {
		log.Fatalf("failed to create app: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if *webPort > 0 {
		srv := web.NewServer(a, log, 0)
		a.AddSink(srv)
		go func() {
			if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", *webPort)); err != nil {
				log.WithError(err).Error("web control stopped")
			}
		}()
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
}

func listDevices(log *logrus.Logger) {
	if err := audio.Initialize(); err != nil {
		log.Fatalf("failed to initialize PortAudio: %v", err)
	}
	defer audio.Terminate()

	devices, err := audio.ListDevices()
	if err != nil {
		log.Fatalf("list devices: %v", err)
	}
	fmt.Printf("\n=== Audio Input Devices ===\n\n")
	for _, dev := range devices {
		if !dev.Capturable() {
			continue
		}
		markers := ""
		if dev.DefaultInput {
			markers += " (default)"
		}
		if dev.Loopback {
			markers += " (loopback)"
		}
		if dev.Preferred {
			markers += " *"
		}
		fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz\n",
			dev.Name, dev.HostAPI, markers, dev.Inputs, dev.Outputs, dev.SampleRate)
	}
	if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
	}
}

func paletteList() string {
	return strings.Join(present.PaletteNames(), "|")
}
