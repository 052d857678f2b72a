package rembg

import (
	"fmt"

	pngstruct "github.com/dsoprea/go-png-image-structure"
)

const (
	colorTypeGrayAlpha = 4
	colorTypeRGBA      = 6
)

// HasAlpha reports whether a PNG carries transparency: an alpha colour type or a tRNS chunk.
func HasAlpha(png []byte) (bool, error) {
	mc, err := pngstruct.NewPngMediaParser().ParseBytes(png)
	if err != nil {
		return false, fmt.Errorf("failed to parse png: %w", err)
	}

	cs, ok := mc.(*pngstruct.ChunkSlice)
	if !ok {
		return false, fmt.Errorf("unexpected png media context %T", mc)
	}

	index := cs.Index()

	if _, found := index["tRNS"]; found {
		return true, nil
	}

	headers, found := index["IHDR"]
	if !found || len(headers) == 0 || len(headers[0].Data) < 10 {
		return false, fmt.Errorf("missing IHDR chunk")
	}

	switch headers[0].Data[9] {
	case colorTypeGrayAlpha, colorTypeRGBA:
		return true, nil
	default:
		return false, nil
	}
}
