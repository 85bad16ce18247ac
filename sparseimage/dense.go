package sparseimage

// DenseImage is a fixed W×H raster with an optional color plane and an
// optional depth plane. At least one plane must be present. Color and
// depth are stored as flat per-pixel arrays sized to the declared format;
// the arrays for an absent plane are nil.
type DenseImage struct {
	Width, Height int
	Format        PixelFormat

	// ColorUByte holds 4 bytes per pixel (R,G,B,A) when Format.Color ==
	// ColorRGBAUByte, else nil.
	ColorUByte []byte
	// ColorFloat holds 4 float32s per pixel when Format.Color ==
	// ColorRGBAFloat, else nil.
	ColorFloat []float32
	// Depth holds 1 float32 per pixel when Format.Depth == DepthFloat,
	// else nil. Inactive pixels carry InactiveDepth.
	Depth []float32
}

// NewDenseImage allocates a DenseImage of the given size and format, with
// every pixel initialized to inactive (InactiveDepth / alpha 0).
func NewDenseImage(width, height int, format PixelFormat) *DenseImage {
	n := width * height
	img := &DenseImage{Width: width, Height: height, Format: format}
	switch format.Color {
	case ColorRGBAUByte:
		img.ColorUByte = make([]byte, n*4)
	case ColorRGBAFloat:
		img.ColorFloat = make([]float32, n*4)
	}
	if format.Depth == DepthFloat {
		img.Depth = make([]float32, n)
		for i := range img.Depth {
			img.Depth[i] = InactiveDepth
		}
	}
	return img
}

// NumPixels returns W*H.
func (d *DenseImage) NumPixels() int {
	return d.Width * d.Height
}

// Pixel decodes the pixel at flat index i into a PixelRecord.
func (d *DenseImage) Pixel(i int) PixelRecord {
	var p PixelRecord
	switch d.Format.Color {
	case ColorRGBAUByte:
		p.R = float32(d.ColorUByte[4*i]) / 255
		p.G = float32(d.ColorUByte[4*i+1]) / 255
		p.B = float32(d.ColorUByte[4*i+2]) / 255
		p.A = float32(d.ColorUByte[4*i+3]) / 255
	case ColorRGBAFloat:
		p.R = d.ColorFloat[4*i]
		p.G = d.ColorFloat[4*i+1]
		p.B = d.ColorFloat[4*i+2]
		p.A = d.ColorFloat[4*i+3]
	}
	if d.Format.Depth == DepthFloat {
		p.Z = d.Depth[i]
	}
	return p
}

// SetPixel encodes p into the pixel at flat index i, bit-exactly for the
// float color/depth paths and with round-to-nearest for the ubyte path.
func (d *DenseImage) SetPixel(i int, p PixelRecord) {
	switch d.Format.Color {
	case ColorRGBAUByte:
		d.ColorUByte[4*i] = clampByte(p.R)
		d.ColorUByte[4*i+1] = clampByte(p.G)
		d.ColorUByte[4*i+2] = clampByte(p.B)
		d.ColorUByte[4*i+3] = clampByte(p.A)
	case ColorRGBAFloat:
		d.ColorFloat[4*i] = p.R
		d.ColorFloat[4*i+1] = p.G
		d.ColorFloat[4*i+2] = p.B
		d.ColorFloat[4*i+3] = p.A
	}
	if d.Format.Depth == DepthFloat {
		d.Depth[i] = p.Z
	}
}

func clampByte(v float32) byte {
	v = v*255 + 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

// IsInactive reports whether the pixel at flat index i is inactive under
// mode, following the rule in the codec's compress contract.
func (d *DenseImage) IsInactive(i int, mode CompositeMode) bool {
	return isInactive(d.Pixel(i), mode, d.Format)
}
