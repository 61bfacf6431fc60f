package preview

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"

	"github.com/MeKo-Tech/cubeplanet/internal/mesh"
	"github.com/MeKo-Tech/cubeplanet/internal/sphere"
	"github.com/MeKo-Tech/cubeplanet/internal/tile"
)

// crossLayout places faces on a 4×3 grid of cells:
//
//	      up
//	left  forward  right  back
//	      down
var crossLayout = map[sphere.Face]image.Point{
	sphere.FaceUp:      {1, 0},
	sphere.FaceLeft:    {0, 1},
	sphere.FaceForward: {1, 1},
	sphere.FaceRight:   {2, 1},
	sphere.FaceBack:    {3, 1},
	sphere.FaceDown:    {1, 2},
}

// Atlas composes face images into a cube-cross image. Faces are scaled to
// cell×cell; missing faces leave their cell transparent.
func Atlas(faces map[sphere.Face]image.Image, cell int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, 4*cell, 3*cell))
	for face, img := range faces {
		pos, ok := crossLayout[face]
		if !ok || img == nil {
			continue
		}
		r := image.Rect(pos.X*cell, pos.Y*cell, (pos.X+1)*cell, (pos.Y+1)*cell)
		if img.Bounds().Dx() == cell && img.Bounds().Dy() == cell {
			draw.Draw(dst, r, img, img.Bounds().Min, draw.Src)
			continue
		}
		draw.CatmullRom.Scale(dst, r, img, img.Bounds(), draw.Src, nil)
	}
	return dst
}

// Overlay draws top over base in place.
func Overlay(base draw.Image, top image.Image) {
	draw.Draw(base, base.Bounds(), top, top.Bounds().Min, draw.Over)
}

// Thumbnail resizes img to width pixels wide, keeping the aspect ratio.
func Thumbnail(img image.Image, width int) *image.NRGBA {
	g := gift.New(gift.Resize(width, 0, gift.LanczosResampling))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// LeafRegions groups leaf keys by face.
func LeafRegions(keys []tile.Key) map[sphere.Face][]mesh.Region {
	out := make(map[sphere.Face][]mesh.Region)
	for _, k := range keys {
		out[k.Face] = append(out[k.Face], mesh.RegionOf(k))
	}
	return out
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
