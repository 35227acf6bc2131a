// Package imageinfo reports basic image metadata. It has no vision model: the
// caller's question is echoed back with a note that visual description is not
// supported.
package imageinfo

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/comigor/assistant-go/internal/fault"
	"github.com/comigor/assistant-go/internal/logger"
)

const (
	// InvalidFileText is returned for a missing or non-regular path.
	InvalidFileText = "❌ Invalid image file provided."

	unsupportedNote = "For detailed image analysis, please use an AI service that supports vision capabilities."
)

// describePrompts are answered with the metadata block and the note alone.
var describePrompts = map[string]bool{
	"describe this image":        true,
	"what is in this image":      true,
	"please describe this image": true,
}

// Info is the metadata read from an image header.
type Info struct {
	Width     int
	Height    int
	Format    string // PNG, JPEG, GIF, BMP, TIFF, WEBP
	ColorMode string
	Camera    string // EXIF make and model, when present
	Taken     string // EXIF capture time, when present
}

// Inspector reads image metadata.
type Inspector struct{}

// New returns an Inspector.
func New() *Inspector { return &Inspector{} }

// Inspect returns the formatted metadata block for the image at path followed
// by the unsupported-capability note. Failures are returned as text.
func (i *Inspector) Inspect(path, prompt string) string {
	info, err := Read(path)
	if err != nil {
		if fault.Is(err, fault.InvalidInput) {
			return InvalidFileText
		}
		logger.L.Warn("image analysis failed", "path", path, "error", err)
		return fmt.Sprintf("❌ Image analysis error: %v", err)
	}
	return Format(info, prompt)
}

// Read decodes the header of the image at path.
func Read(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		if err == nil {
			err = fmt.Errorf("%s is not a regular file", path)
		}
		return Info{}, fault.New(fault.InvalidInput, "inspect", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, fault.New(fault.InvalidInput, "inspect", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("decode %s: %w", path, err)
	}

	info := Info{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    strings.ToUpper(format),
		ColorMode: colorMode(cfg.ColorModel),
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		readExif(f, &info)
	}
	return info, nil
}

func readExif(r io.Reader, info *Info) {
	x, err := exif.Decode(r)
	if err != nil {
		// most PNG/GIF files carry no EXIF block
		return
	}
	var parts []string
	for _, field := range []exif.FieldName{exif.Make, exif.Model} {
		if tag, err := x.Get(field); err == nil {
			if v, err := tag.StringVal(); err == nil && strings.TrimSpace(v) != "" {
				parts = append(parts, strings.TrimSpace(v))
			}
		}
	}
	info.Camera = strings.Join(parts, " ")
	if ts, err := x.DateTime(); err == nil {
		info.Taken = ts.Format("2006-01-02 15:04:05")
	}
}

// Format renders info and the answer to prompt.
func Format(info Info, prompt string) string {
	var b strings.Builder
	b.WriteString("📷 **Image Information:**\n")
	fmt.Fprintf(&b, "• Dimensions: %d x %d pixels\n", info.Width, info.Height)
	fmt.Fprintf(&b, "• Format: %s\n", info.Format)
	fmt.Fprintf(&b, "• Color Mode: %s\n", info.ColorMode)
	if info.Camera != "" {
		fmt.Fprintf(&b, "• Camera: %s\n", info.Camera)
	}
	if info.Taken != "" {
		fmt.Fprintf(&b, "• Taken: %s\n", info.Taken)
	}
	b.WriteString("\n")

	if IsDescribePrompt(prompt) {
		b.WriteString("🔍 *" + unsupportedNote + "*")
	} else {
		fmt.Fprintf(&b, "💡 *You asked: '%s'\n\n%s*", prompt, unsupportedNote)
	}
	return b.String()
}

// IsDescribePrompt reports whether prompt is one of the generic "describe" phrasings.
func IsDescribePrompt(prompt string) bool {
	return describePrompts[strings.ToLower(prompt)]
}

func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	// Decoders return the premultiplied models for truecolor data without an
	// alpha channel and the non-premultiplied ones when alpha is stored.
	switch m {
	case color.RGBAModel, color.RGBA64Model, color.YCbCrModel:
		return "RGB"
	case color.NRGBAModel, color.NRGBA64Model, color.NYCbCrAModel:
		return "RGBA"
	case color.GrayModel:
		return "L"
	case color.Gray16Model:
		return "I;16"
	case color.CMYKModel:
		return "CMYK"
	case color.AlphaModel, color.Alpha16Model:
		return "A"
	}
	return "unknown"
}
