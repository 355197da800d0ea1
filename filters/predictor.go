package filters

import (
	"fmt"

	"github.com/wudi/pdfstore/object"
)

// applyPredictor reverses the TIFF/PNG predictor declared in DecodeParms.
// Cross-reference streams are almost always Flate-compressed with PNG Up
// prediction (Predictor 12), so this stage runs after decompression.
func applyPredictor(data []byte, params *object.Dict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor := int(params.Int64("Predictor"))
	if predictor <= 1 {
		return data, nil
	}
	colors := intOr(params, "Colors", 1)
	bpc := intOr(params, "BitsPerComponent", 8)
	columns := intOr(params, "Columns", 1)

	bpp := (colors*bpc + 7) / 8 // bytes per pixel
	rowLen := (colors*bpc*columns + 7) / 8

	if predictor == 2 {
		return applyTIFFPredictor(data, bpc, colors, rowLen)
	}
	if predictor < 10 || predictor > 15 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}

	// PNG predictors: each row is prefixed with a per-row filter byte.
	stride := rowLen + 1
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("predictor row misalignment: %d %% %d != 0", len(data), stride)
	}
	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*stride]
		copy(cur, data[r*stride+1:(r+1)*stride])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("invalid PNG filter type %d", ft)
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func applyTIFFPredictor(data []byte, bpc, colors, rowLen int) ([]byte, error) {
	if bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor with %d bits per component not supported", bpc)
	}
	out := append([]byte(nil), data...)
	for row := 0; row+rowLen <= len(out); row += rowLen {
		for i := colors; i < rowLen; i++ {
			out[row+i] += out[row+i-colors]
		}
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func intOr(d *object.Dict, key object.Name, def int) int {
	if v, ok := d.Get(key); ok {
		if n, ok := v.(object.Number); ok {
			return int(n.Int64())
		}
	}
	return def
}
