package nativetext

import (
	"math"

	"github.com/docpane/textlayer/pkg/geometry"
	"github.com/docpane/textlayer/pkg/projection"
)

// substituteOCRText performs greedy nearest-centroid matching of OCR words to
// renderer runs, replacing each matched run's text with the OCR word's text.
// Each OCR word is consumed at most once. Runs with no OCR word within
// maxDist keep their renderer text. Returns the number of substitutions.
func substituteOCRText(runs []projection.ProjectedWord, ocrWords []geometry.Word, containerW, containerH, maxDist float64) int {
	type candidate struct {
		text string
		cx   float64
		cy   float64
		used bool
	}

	cands := make([]candidate, 0, len(ocrWords))
	for _, w := range geometry.SaneWords(ocrWords) {
		cands = append(cands, candidate{
			text: w.Text,
			cx:   (w.X + w.Width/2) * containerW,
			cy:   (w.Y + w.Height/2) * containerH,
		})
	}
	if len(cands) == 0 {
		return 0
	}

	matched := 0
	for i := range runs {
		rcx := runs[i].ScreenX + runs[i].ScreenWidth/2
		rcy := runs[i].ScreenY + runs[i].ScreenHeight/2

		best := -1
		bestDist := maxDist
		for j := range cands {
			if cands[j].used {
				continue
			}
			d := math.Hypot(cands[j].cx-rcx, cands[j].cy-rcy)
			if d <= bestDist {
				bestDist = d
				best = j
			}
		}
		if best >= 0 {
			runs[i].Text = cands[best].text
			cands[best].used = true
			matched++
		}
	}
	return matched
}
