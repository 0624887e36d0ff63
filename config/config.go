// Package config loads the settings of the pitchseg command from YAML.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-pitchseg/images"
	"github.com/nvr-ai/go-pitchseg/logger"
	"github.com/nvr-ai/go-pitchseg/segmentation"
)

// FrameSettings selects the frame size of every stream, either by naming a
// resolution or by giving the dimensions. Explicit dimensions win.
type FrameSettings struct {
	Resolution images.ResolutionType `json:"resolution" yaml:"resolution"`
	Width      int                   `json:"width"      yaml:"width"`
	Height     int                   `json:"height"     yaml:"height"`
}

// Size resolves the configured frame size.
func (f FrameSettings) Size() (images.FrameSize, error) {
	if f.Width != 0 || f.Height != 0 {
		size := images.FrameSize{Width: f.Width, Height: f.Height}
		if !size.Valid() {
			return images.FrameSize{}, errors.Errorf("frame size must be positive, got %s", size)
		}
		return size, nil
	}
	res, ok := images.GetResolutionByType(f.Resolution)
	if !ok {
		return images.FrameSize{}, errors.Errorf("unknown resolution %q", f.Resolution)
	}
	return res.Size, nil
}

// OutputSettings controls where masks are written.
type OutputSettings struct {
	// Directory receives one subdirectory of masks per stream.
	Directory string `json:"directory" yaml:"directory"`
	// WriteMasks disables mask files when false, for dry runs and profiling.
	WriteMasks bool `json:"write_masks" yaml:"write_masks"`
}

// Settings is the root of the configuration file.
type Settings struct {
	Frame        FrameSettings       `json:"frame"        yaml:"frame"`
	Segmentation segmentation.Config `json:"segmentation" yaml:"segmentation"`
	Logging      logger.Config       `json:"logging"      yaml:"logging"`
	Output       OutputSettings      `json:"output"       yaml:"output"`
}

// Default returns the settings used for keys missing from the file.
func Default() Settings {
	return Settings{
		Frame:        FrameSettings{Resolution: images.ResolutionTypeHD720p},
		Segmentation: segmentation.DefaultConfig(),
		Logging:      logger.DefaultConfig(),
		Output:       OutputSettings{Directory: "masks", WriteMasks: true},
	}
}

// Validate checks every section.
func (s Settings) Validate() error {
	if _, err := s.Frame.Size(); err != nil {
		return errors.Wrap(err, "frame")
	}
	if err := s.Segmentation.Validate(); err != nil {
		return errors.Wrap(err, "segmentation")
	}
	if err := s.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if s.Output.WriteMasks && s.Output.Directory == "" {
		return errors.New("output: directory is required when write_masks is set")
	}
	return nil
}

// Load reads and validates the settings file at path.
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "failed to open config %s", path)
	}
	defer f.Close()

	settings, err := Decode(f)
	if err != nil {
		return Settings{}, errors.Wrapf(err, "failed to load config %s", path)
	}
	return settings, nil
}

// Decode reads YAML settings from r on top of Default and validates them.
// Unknown keys are rejected.
func Decode(r io.Reader) (Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Settings{}, errors.Wrap(err, "failed to read config")
	}

	settings := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&settings); err != nil {
			return Settings{}, errors.Wrap(err, "invalid yaml")
		}
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
