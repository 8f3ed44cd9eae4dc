/*
Copyright © 2021 the OceanDrift authors.
This file is part of OceanDrift.

OceanDrift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

OceanDrift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with OceanDrift.  If not, see <http://www.gnu.org/licenses/>.
*/

package render

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
)

// DefaultGIFDelay is the default delay between animation frames in
// hundredths of a second.
const DefaultGIFDelay = 25

// AnimateGIF assembles the PNG frames into an animated GIF at path.
// delay is the time between frames in hundredths of a second; values
// below 1 use DefaultGIFDelay.
func AnimateGIF(frames []string, path string, delay int) error {
	if len(frames) == 0 {
		return fmt.Errorf("render: no frames to animate")
	}
	if delay < 1 {
		delay = DefaultGIFDelay
	}
	anim := &gif.GIF{LoopCount: 0}
	for _, frame := range frames {
		img, err := readPNG(frame)
		if err != nil {
			return err
		}
		pal := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(pal, img.Bounds(), img, image.Point{})
		anim.Image = append(anim.Image, pal)
		anim.Delay = append(anim.Delay, delay)
	}
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		w.Close()
		return fmt.Errorf("render: encoding animation: %v", err)
	}
	return w.Close()
}

func readPNG(path string) (image.Image, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("render: decoding frame %s: %v", path, err)
	}
	return img, nil
}
