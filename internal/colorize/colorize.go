// Package colorize implements spec §4.12: a fixed 256-entry perceptual
// colormap mapping 16-bit grayscale spectrogram pixels to RGBA. The
// colormap table is taken verbatim from
// original_source/src_backend/backend/visualize/colorize.rs.
package colorize

const (
	black = 0
	white = 255
)

var colormapR = [256]float32{
	0.0, 1.0, 1.0, 1.0, 2.0, 2.0, 2.0, 3.0, 4.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0, 10.0, 11.0, 12.0,
	13.0, 14.0, 16.0, 17.0, 18.0, 20.0, 21.0, 22.0, 24.0, 25.0, 27.0, 28.0, 30.0, 31.0, 33.0, 35.0,
	36.0, 38.0, 40.0, 42.0, 43.0, 45.0, 47.0, 49.0, 51.0, 52.0, 54.0, 56.0, 58.0, 59.0, 61.0, 63.0,
	64.0, 66.0, 68.0, 69.0, 71.0, 73.0, 74.0, 76.0, 78.0, 79.0, 81.0, 83.0, 84.0, 86.0, 87.0, 89.0,
	91.0, 92.0, 94.0, 95.0, 97.0, 99.0, 100.0, 102.0, 103.0, 105.0, 107.0, 108.0, 110.0, 111.0,
	113.0, 115.0, 116.0, 118.0, 119.0, 121.0, 123.0, 124.0, 126.0, 127.0, 129.0, 130.0, 132.0,
	134.0, 135.0, 137.0, 138.0, 140.0, 142.0, 143.0, 145.0, 146.0, 148.0, 150.0, 151.0, 153.0,
	154.0, 156.0, 158.0, 159.0, 161.0, 162.0, 164.0, 165.0, 167.0, 169.0, 170.0, 172.0, 173.0,
	175.0, 176.0, 178.0, 179.0, 181.0, 182.0, 184.0, 185.0, 187.0, 188.0, 190.0, 191.0, 193.0,
	194.0, 196.0, 197.0, 198.0, 200.0, 201.0, 203.0, 204.0, 205.0, 207.0, 208.0, 209.0, 211.0,
	212.0, 213.0, 214.0, 216.0, 217.0, 218.0, 219.0, 220.0, 221.0, 223.0, 224.0, 225.0, 226.0,
	227.0, 228.0, 229.0, 230.0, 231.0, 232.0, 233.0, 234.0, 235.0, 235.0, 236.0, 237.0, 238.0,
	239.0, 240.0, 240.0, 241.0, 242.0, 242.0, 243.0, 244.0, 244.0, 245.0, 246.0, 246.0, 247.0,
	247.0, 248.0, 248.0, 249.0, 249.0, 249.0, 250.0, 250.0, 250.0, 251.0, 251.0, 251.0, 252.0,
	252.0, 252.0, 252.0, 252.0, 253.0, 253.0, 253.0, 253.0, 253.0, 253.0, 253.0, 253.0, 253.0,
	253.0, 253.0, 253.0, 252.0, 252.0, 252.0, 252.0, 252.0, 251.0, 251.0, 251.0, 251.0, 250.0,
	250.0, 250.0, 249.0, 249.0, 248.0, 248.0, 247.0, 247.0, 246.0, 246.0, 245.0, 245.0, 244.0,
	244.0, 244.0, 243.0, 243.0, 243.0, 242.0, 242.0, 242.0, 242.0, 243.0, 243.0, 244.0, 244.0,
	245.0, 246.0, 247.0, 249.0, 250.0, 251.0, 253.0,
}

var colormapG = [256]float32{
	0.0, 0.0, 1.0, 1.0, 1.0, 2.0, 2.0, 2.0, 3.0, 3.0, 4.0, 4.0, 5.0, 6.0, 6.0, 7.0, 7.0, 8.0, 8.0,
	9.0, 9.0, 10.0, 10.0, 11.0, 11.0, 11.0, 12.0, 12.0, 12.0, 12.0, 12.0, 12.0, 12.0, 12.0, 12.0,
	12.0, 11.0, 11.0, 11.0, 11.0, 10.0, 10.0, 10.0, 10.0, 9.0, 9.0, 9.0, 9.0, 9.0, 9.0, 10.0, 10.0,
	10.0, 10.0, 11.0, 11.0, 12.0, 12.0, 13.0, 13.0, 14.0, 14.0, 15.0, 15.0, 16.0, 17.0, 17.0, 18.0,
	18.0, 19.0, 20.0, 20.0, 21.0, 21.0, 22.0, 23.0, 23.0, 24.0, 24.0, 25.0, 25.0, 26.0, 27.0, 27.0,
	28.0, 28.0, 29.0, 29.0, 30.0, 31.0, 31.0, 32.0, 32.0, 33.0, 33.0, 34.0, 34.0, 35.0, 36.0, 36.0,
	37.0, 37.0, 38.0, 38.0, 39.0, 40.0, 40.0, 41.0, 41.0, 42.0, 43.0, 43.0, 44.0, 45.0, 45.0, 46.0,
	46.0, 47.0, 48.0, 49.0, 49.0, 50.0, 51.0, 51.0, 52.0, 53.0, 54.0, 54.0, 55.0, 56.0, 57.0, 58.0,
	59.0, 60.0, 60.0, 61.0, 62.0, 63.0, 64.0, 65.0, 66.0, 67.0, 68.0, 69.0, 70.0, 72.0, 73.0, 74.0,
	75.0, 76.0, 77.0, 79.0, 80.0, 81.0, 82.0, 84.0, 85.0, 86.0, 88.0, 89.0, 90.0, 92.0, 93.0, 95.0,
	96.0, 98.0, 99.0, 101.0, 102.0, 104.0, 105.0, 107.0, 109.0, 110.0, 112.0, 113.0, 115.0, 117.0,
	118.0, 120.0, 122.0, 123.0, 125.0, 127.0, 129.0, 130.0, 132.0, 134.0, 136.0, 137.0, 139.0,
	141.0, 143.0, 145.0, 146.0, 148.0, 150.0, 152.0, 154.0, 156.0, 158.0, 160.0, 161.0, 163.0,
	165.0, 167.0, 169.0, 171.0, 173.0, 175.0, 177.0, 179.0, 181.0, 183.0, 185.0, 186.0, 188.0,
	190.0, 192.0, 194.0, 196.0, 198.0, 200.0, 202.0, 204.0, 206.0, 208.0, 210.0, 212.0, 214.0,
	216.0, 218.0, 220.0, 222.0, 224.0, 226.0, 228.0, 229.0, 231.0, 233.0, 235.0, 237.0, 238.0,
	240.0, 241.0, 243.0, 244.0, 246.0, 247.0, 249.0, 250.0, 251.0, 252.0, 253.0, 254.0, 255.0,
}

var colormapB = [256]float32{
	4.0, 5.0, 6.0, 8.0, 10.0, 12.0, 14.0, 16.0, 18.0, 21.0, 23.0, 25.0, 27.0, 29.0, 32.0, 34.0,
	36.0, 38.0, 41.0, 43.0, 45.0, 48.0, 50.0, 53.0, 55.0, 58.0, 60.0, 62.0, 65.0, 67.0, 70.0, 72.0,
	74.0, 77.0, 79.0, 81.0, 83.0, 85.0, 87.0, 89.0, 91.0, 93.0, 94.0, 96.0, 97.0, 98.0, 99.0,
	100.0, 101.0, 102.0, 103.0, 104.0, 105.0, 105.0, 106.0, 107.0, 107.0, 108.0, 108.0, 108.0,
	109.0, 109.0, 109.0, 110.0, 110.0, 110.0, 110.0, 110.0, 111.0, 111.0, 111.0, 111.0, 111.0,
	111.0, 111.0, 111.0, 111.0, 111.0, 111.0, 111.0, 110.0, 110.0, 110.0, 110.0, 110.0, 110.0,
	109.0, 109.0, 109.0, 109.0, 108.0, 108.0, 108.0, 107.0, 107.0, 107.0, 106.0, 106.0, 105.0,
	105.0, 105.0, 104.0, 104.0, 103.0, 102.0, 102.0, 101.0, 101.0, 100.0, 100.0, 99.0, 98.0, 98.0,
	97.0, 96.0, 95.0, 95.0, 94.0, 93.0, 92.0, 92.0, 91.0, 90.0, 89.0, 88.0, 87.0, 86.0, 85.0, 85.0,
	84.0, 83.0, 82.0, 81.0, 80.0, 79.0, 78.0, 77.0, 76.0, 75.0, 74.0, 72.0, 71.0, 70.0, 69.0, 68.0,
	67.0, 66.0, 65.0, 64.0, 62.0, 61.0, 60.0, 59.0, 58.0, 57.0, 56.0, 54.0, 53.0, 52.0, 51.0, 50.0,
	48.0, 47.0, 46.0, 45.0, 43.0, 42.0, 41.0, 40.0, 38.0, 37.0, 36.0, 35.0, 33.0, 32.0, 31.0, 30.0,
	28.0, 27.0, 26.0, 24.0, 23.0, 22.0, 20.0, 19.0, 18.0, 16.0, 15.0, 14.0, 12.0, 11.0, 10.0, 9.0,
	8.0, 7.0, 7.0, 6.0, 6.0, 6.0, 6.0, 7.0, 7.0, 8.0, 9.0, 10.0, 12.0, 13.0, 15.0, 17.0, 19.0,
	20.0, 22.0, 24.0, 27.0, 29.0, 31.0, 33.0, 35.0, 38.0, 40.0, 43.0, 45.0, 48.0, 50.0, 53.0, 56.0,
	58.0, 61.0, 64.0, 67.0, 70.0, 73.0, 76.0, 80.0, 83.0, 86.0, 90.0, 94.0, 97.0, 101.0, 105.0,
	109.0, 113.0, 117.0, 122.0, 126.0, 130.0, 134.0, 138.0, 142.0, 146.0, 150.0, 154.0, 158.0,
	162.0, 165.0,
}

const greyToPos = float32(256) / float32(65535-1)

// RGBATable returns the 257-entry (256 colormap + white) RGBA palette in
// the layout the original exposes, for UIs that prefer to index a flat
// table rather than call ToRGB per pixel.
func RGBATable() []uint8 {
	out := make([]uint8, 0, 257*4)
	for i := 0; i < 256; i++ {
		out = append(out, uint8(colormapR[i]), uint8(colormapG[i]), uint8(colormapB[i]), 255)
	}
	out = append(out, white, white, white, 255)
	return out
}

// ToRGB maps a single u16 gray value to RGB (spec §4.12):
// 0 -> black, 65535 -> white, otherwise linear interpolation between two
// adjacent colormap entries (or white past the table's end), rounded
// half-to-even to match the reference's SIMD rounding mode.
func ToRGB(x uint16) [3]uint8 {
	if x == 0 {
		return [3]uint8{black, black, black}
	}
	if x == 65535 {
		return [3]uint8{white, white, white}
	}
	position := float32(x)*greyToPos - greyToPos
	idx2 := int(floorF32(position))
	idx1 := idx2 + 1
	ratio := position - floorF32(position)

	var r1, g1, b1 float32
	if idx2 >= len(colormapR)-1 {
		r1, g1, b1 = white, white, white
	} else {
		r1, g1, b1 = colormapR[idx1], colormapG[idx1], colormapB[idx1]
	}
	r2, g2, b2 := colormapR[idx2], colormapG[idx2], colormapB[idx2]

	return [3]uint8{
		interpolate(r1, r2, ratio),
		interpolate(g1, g2, ratio),
		interpolate(b1, b2, ratio),
	}
}

func interpolate(color1, color2, ratio float32) uint8 {
	v := ratio*color1 + color2*(1-ratio)
	return uint8(roundHalfEven(v))
}

func floorF32(x float32) float32 {
	i := int64(x)
	if float32(i) > x {
		i--
	}
	return float32(i)
}

func roundHalfEven(x float32) float32 {
	floor := floorF32(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if int64(floor)%2 == 0 {
			return floor
		}
		return floor + 1
	}
}

// ToRGBARow maps a full row of gray pixels to interleaved RGBA bytes
// (scalar path; a SIMD-accelerated path is a documented non-goal of this
// port, see DESIGN.md).
func ToRGBARow(gray []uint16) []uint8 {
	out := make([]uint8, len(gray)*4)
	for i, g := range gray {
		rgb := ToRGB(g)
		out[i*4+0] = rgb[0]
		out[i*4+1] = rgb[1]
		out[i*4+2] = rgb[2]
		out[i*4+3] = 255
	}
	return out
}
