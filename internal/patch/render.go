package patch

import (
	"bufio"
	"io"
)

// Render writes each correlated hunk preceded by the labels of the spans it touches. Hunk
// lines keep their origin character.
func Render(w io.Writer, reports []FileReport) error {
	bw := bufio.NewWriter(w)
	for _, fr := range reports {
		for _, hs := range fr.Hunks {
			seen := make(map[string]bool)
			for _, s := range hs.Spans {
				label := s.Label()
				if seen[label] {
					continue
				}
				seen[label] = true
				bw.WriteString(label)
				bw.WriteByte('\n')
			}
			for _, l := range hs.Hunk.Lines {
				bw.WriteByte(l.Origin)
				bw.WriteString(l.Content)
				bw.WriteByte('\n')
			}
		}
	}
	return bw.Flush()
}
