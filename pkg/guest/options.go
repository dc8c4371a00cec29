package guest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var ErrInvalidOptions = errors.New("invalid stream options")

type DisplayMode string

const (
	Borderless DisplayMode = "borderless"
	Fullscreen DisplayMode = "fullscreen"
	Windowed   DisplayMode = "windowed"
)

type Decoder string

const (
	DecoderAuto     Decoder = "auto"
	DecoderHardware Decoder = "hardware"
	DecoderSoftware Decoder = "software"
)

// DefaultApp is the application every host offers.
const DefaultApp = "Desktop"

// StreamOptions enumerates everything the client is launched with.
type StreamOptions struct {
	Width  int
	Height int
	FPS    int
	// Bitrate in Kbps; 0 lets the client pick from resolution and FPS.
	Bitrate     int
	DisplayMode DisplayMode
	// Audio plays the stream's audio on the guest. When false audio stays
	// on the host.
	Audio   bool
	Decoder Decoder
	App     string
}

type preset struct {
	width, height, fps int
}

var presets = map[string]preset{
	"720p30":  {1280, 720, 30},
	"1080p30": {1920, 1080, 30},
	"1080p60": {1920, 1080, 60},
	"1440p60": {2560, 1440, 60},
	"4k60":    {3840, 2160, 60},
}

// Presets lists the quality preset names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		Width:       1920,
		Height:      1080,
		FPS:         60,
		DisplayMode: Borderless,
		Audio:       true,
		Decoder:     DecoderAuto,
		App:         DefaultApp,
	}
}

// ApplyPreset sets resolution and frame rate from a named preset.
func (o *StreamOptions) ApplyPreset(name string) error {
	p, ok := presets[name]
	if !ok {
		return fmt.Errorf("%w: unknown quality preset %q", ErrInvalidOptions, name)
	}
	o.Width, o.Height, o.FPS = p.width, p.height, p.fps
	return nil
}

// Validate checks every option once, before Args.
func (o StreamOptions) Validate() error {
	if o.Width <= 0 || o.Height <= 0 || o.Width > 7680 || o.Height > 4320 {
		return fmt.Errorf("%w: resolution %dx%d", ErrInvalidOptions, o.Width, o.Height)
	}
	if o.FPS <= 0 || o.FPS > 240 {
		return fmt.Errorf("%w: fps %d", ErrInvalidOptions, o.FPS)
	}
	if o.Bitrate < 0 || o.Bitrate > 500000 {
		return fmt.Errorf("%w: bitrate %d", ErrInvalidOptions, o.Bitrate)
	}
	switch o.DisplayMode {
	case Borderless, Fullscreen, Windowed:
	default:
		return fmt.Errorf("%w: display mode %q", ErrInvalidOptions, o.DisplayMode)
	}
	switch o.Decoder {
	case DecoderAuto, DecoderHardware, DecoderSoftware:
	default:
		return fmt.Errorf("%w: decoder %q", ErrInvalidOptions, o.Decoder)
	}
	if o.App == "" {
		return fmt.Errorf("%w: empty app name", ErrInvalidOptions)
	}
	return nil
}

// Args builds the client's "stream" invocation for host, without the binary.
func (o StreamOptions) Args(host string) []string {
	args := []string{
		"stream", host, o.App,
		"--resolution", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"--fps", strconv.Itoa(o.FPS),
	}
	if o.Bitrate > 0 {
		args = append(args, "--bitrate", strconv.Itoa(o.Bitrate))
	}
	args = append(args,
		"--display-mode", string(o.DisplayMode),
		"--video-decoder", string(o.Decoder),
	)
	if !o.Audio {
		args = append(args, "--audio-on-host")
	}
	return args
}
