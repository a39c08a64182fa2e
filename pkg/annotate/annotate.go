// Package annotate draws detection boxes onto an encoded image.
package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"VisionGuard/internal/entity"
)

var boxColor = color.RGBA{R: 255, G: 64, B: 64, A: 255}

// Draw decodes imageData, outlines every box and re-encodes in the original
// format (JPEG for anything that is not PNG).
func Draw(imageData []byte, boxes []entity.BoundingBox) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	thickness := lineThickness(bounds)
	for _, box := range boxes {
		drawRect(canvas, int(box.X1), int(box.Y1), int(box.X2), int(box.Y2), thickness)
	}

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, canvas)
	} else {
		err = jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lineThickness(bounds image.Rectangle) int {
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}
	t := longest / 400
	if t < 2 {
		t = 2
	}
	return t
}

func drawRect(img *image.RGBA, x1, y1, x2, y2, thickness int) {
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			img.Set(x, y1+t, boxColor)
			img.Set(x, y2-t, boxColor)
		}
		for y := y1; y <= y2; y++ {
			img.Set(x1+t, y, boxColor)
			img.Set(x2-t, y, boxColor)
		}
	}
}
