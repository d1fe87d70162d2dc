package qr

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"

	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("qr")

var ErrNoCode = errors.New("no qr code found")

// Technique is one preprocessing attempt applied before decoding.
type Technique struct {
	Name      string
	TryHarder bool
	Transform func(image.Image) image.Image
}

// DefaultTechniques mirrors what phone scans tend to need: the raw image,
// a slower exhaustive pass, then grayscale, contrast stretch and inversion.
var DefaultTechniques = []Technique{
	{Name: "original"},
	{Name: "try-harder", TryHarder: true},
	{Name: "grayscale", TryHarder: true, Transform: Grayscale},
	{Name: "contrast", TryHarder: true, Transform: Stretch},
	{Name: "invert", TryHarder: true, Transform: Invert},
}

// Decoder reads QR codes out of images.
type Decoder struct {
	Techniques []Technique
}

func NewDecoder() *Decoder {
	return &Decoder{Techniques: DefaultTechniques}
}

// DecodeFile loads an image file and decodes it.
func (d *Decoder) DecodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}

	text, err := d.Decode(img)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	return text, nil
}

// Decode runs the techniques in order and returns the first text found.
func (d *Decoder) Decode(img image.Image) (string, error) {
	reader := zxqr.NewQRCodeReader()

	for _, technique := range d.Techniques {
		src := img
		if technique.Transform != nil {
			src = technique.Transform(img)
		}

		bmp, err := gozxing.NewBinaryBitmapFromImage(src)
		if err != nil {
			continue
		}

		var hints map[gozxing.DecodeHintType]interface{}
		if technique.TryHarder {
			hints = map[gozxing.DecodeHintType]interface{}{
				gozxing.DecodeHintType_TRY_HARDER: true,
			}
		}

		result, err := reader.Decode(bmp, hints)
		if err != nil {
			log.Debugw("decode", "technique", technique.Name, "status", "miss")
			continue
		}

		return result.GetText(), nil
	}

	return "", ErrNoCode
}

func Grayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}

	return gray
}

// Stretch maps the darkest pixel to black and the brightest to white.
func Stretch(img image.Image) image.Image {
	gray := Grayscale(img).(*image.Gray)

	lo, hi := uint8(255), uint8(0)
	for _, p := range gray.Pix {
		lo = min(lo, p)
		hi = max(hi, p)
	}
	if hi <= lo {
		return gray
	}

	span := int(hi - lo)
	for i, p := range gray.Pix {
		gray.Pix[i] = uint8(int(p-lo) * 255 / span)
	}

	return gray
}

func Invert(img image.Image) image.Image {
	gray := Grayscale(img).(*image.Gray)
	for i, p := range gray.Pix {
		gray.Pix[i] = 255 - p
	}

	return gray
}
