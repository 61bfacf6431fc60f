package mask

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestWater(t *testing.T) {
	// 2x2 grid, row 0 is v = 0 (bottom of the image).
	heights := []float64{
		0.5, 2,
		2, 0.5,
	}
	m := Water(heights, 2, 1)

	if m.GrayAt(0, 1).Y != 255 {
		t.Errorf("Expected water at bottom-left, got %d", m.GrayAt(0, 1).Y)
	}
	if m.GrayAt(1, 0).Y != 255 {
		t.Errorf("Expected water at top-right, got %d", m.GrayAt(1, 0).Y)
	}
	if m.GrayAt(0, 0).Y != 0 || m.GrayAt(1, 1).Y != 0 {
		t.Errorf("Expected land on the other diagonal")
	}
}

func TestInvert(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 2, 1))
	m.Pix[0] = 255
	inv := Invert(m)
	if inv.Pix[0] != 0 || inv.Pix[1] != 255 {
		t.Errorf("Unexpected inverted pixels: %v", inv.Pix)
	}
}

func TestGaussianBlur(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 10; x < 20; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	blurred := GaussianBlur(m, 2)
	if blurred.Bounds() != m.Bounds() {
		t.Fatalf("Expected bounds %v, got %v", m.Bounds(), blurred.Bounds())
	}
	edge := blurred.GrayAt(10, 10).Y
	if edge == 0 || edge == 255 {
		t.Errorf("Expected soft edge value, got %d", edge)
	}
	if blurred.GrayAt(1, 10).Y != 0 || blurred.GrayAt(18, 10).Y != 255 {
		t.Errorf("Expected far pixels to keep their values")
	}
}

func TestBorderDistance(t *testing.T) {
	// A 21-pixel wide band in the middle of a 41-pixel row image.
	m := image.NewGray(image.Rect(0, 0, 41, 5))
	for y := 0; y < 5; y++ {
		for x := 10; x <= 30; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	dist := BorderDistance(m, 20)
	if dist.GrayAt(10, 2).Y != 0 {
		t.Errorf("Expected 0 at the border, got %d", dist.GrayAt(10, 2).Y)
	}
	if dist.GrayAt(5, 2).Y != 0 {
		t.Errorf("Expected 0 outside the mask, got %d", dist.GrayAt(5, 2).Y)
	}

	// Column 20 is 10 pixels from both borders: 255*10/20.
	if got := dist.GrayAt(20, 2).Y; got != 127 {
		t.Errorf("Expected 127 at the band centre, got %d", got)
	}
	if dist.GrayAt(15, 2).Y >= dist.GrayAt(20, 2).Y {
		t.Errorf("Expected distance to grow towards the centre")
	}
}

func TestBorderDistanceFullMask(t *testing.T) {
	m := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range m.Pix {
		m.Pix[i] = 255
	}
	dist := BorderDistance(m, 3)
	for i, v := range dist.Pix {
		if v != 255 {
			t.Fatalf("Pixel %d: expected 255 without any border, got %d", i, v)
		}
	}
}

func TestSquaredDistance1D(t *testing.T) {
	inf := math.Inf(1)
	f := []float64{inf, 0, inf, inf, inf, 0, inf}
	d := make([]float64, len(f))
	squaredDistance1D(f, d)

	want := []float64{1, 0, 1, 4, 1, 0, 1}
	for i := range want {
		if d[i] != want[i] {
			t.Errorf("d[%d] = %v, want %v", i, d[i], want[i])
		}
	}
}

func TestShore(t *testing.T) {
	water := image.NewGray(image.Rect(0, 0, 30, 3))
	for y := 0; y < 3; y++ {
		for x := 10; x < 30; x++ {
			water.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	shore := Shore(water, 8, 1)
	if shore.GrayAt(10, 1).Y != 255 {
		t.Errorf("Expected full intensity at the coast, got %d", shore.GrayAt(10, 1).Y)
	}
	if shore.GrayAt(25, 1).Y != 0 {
		t.Errorf("Expected no intensity in open water, got %d", shore.GrayAt(25, 1).Y)
	}
	if shore.GrayAt(5, 1).Y != 0 {
		t.Errorf("Expected no intensity on land, got %d", shore.GrayAt(5, 1).Y)
	}
	if v := shore.GrayAt(13, 1).Y; v == 0 || v == 255 {
		t.Errorf("Expected partial intensity near the coast, got %d", v)
	}
}

func TestTint(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	base.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 255})
	base.SetNRGBA(1, 0, color.NRGBA{0, 0, 0, 255})
	m := image.NewGray(image.Rect(0, 0, 2, 1))
	m.SetGray(0, 0, color.Gray{Y: 255})

	Tint(base, m, color.NRGBA{200, 100, 50, 255}, 0.5)

	if got := base.NRGBAAt(0, 0); got != (color.NRGBA{100, 50, 25, 255}) {
		t.Errorf("Expected half tint, got %v", got)
	}
	if got := base.NRGBAAt(1, 0); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Expected untouched pixel, got %v", got)
	}
}
