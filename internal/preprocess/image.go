package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/docextract/internal/common"
)

// prepareImage treats a raster upload as a single-page document. No text is
// produced for images; OCR is left to the providers.
func (p *Preprocessor) prepareImage(data []byte, wantImages bool, out *PreparedContent) error {
	out.Pages = 1
	if !wantImages {
		return nil
	}
	if len(data) == 0 {
		return common.PreprocessError("empty image", nil)
	}

	if p.cfg.MaxImageEdge <= 0 {
		out.Images = []string{base64.StdEncoding.EncodeToString(data)}
		return nil
	}

	encoded, resized, err := p.fitImage(data)
	if err != nil {
		// undecodable here does not mean undecodable for the model
		out.Warnings = append(out.Warnings, "resize skipped: "+err.Error())
		out.Images = []string{base64.StdEncoding.EncodeToString(data)}
		return nil
	}
	if resized {
		p.logger.Debug("preprocess.image.resized", "max_edge", p.cfg.MaxImageEdge)
	}
	out.Images = []string{encoded}
	return nil
}

func (p *Preprocessor) fitImage(data []byte) (string, bool, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", false, err
	}
	b := img.Bounds()
	edge := p.cfg.MaxImageEdge
	if b.Dx() <= edge && b.Dy() <= edge {
		return base64.StdEncoding.EncodeToString(data), false, nil
	}

	var fitted image.Image = imaging.Fit(img, edge, edge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		return "", false, err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), true, nil
}
