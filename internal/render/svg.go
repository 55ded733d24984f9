package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	svgFont     = "ui-monospace, SFMono-Regular, Menlo, monospace"
	svgFontSize = 12
	svgDash     = "4 3"
)

type svgWriter struct {
	w   *bufio.Writer
	err error
}

func (sw *svgWriter) printf(format string, args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}

func (sw *svgWriter) text(s string) {
	if sw.err != nil {
		return
	}
	sw.err = xml.EscapeText(sw.w, []byte(s))
}

func dashAttr(dashed bool) string {
	if !dashed {
		return ""
	}
	return fmt.Sprintf(` stroke-dasharray="%s"`, svgDash)
}

// WriteSVG writes scene as a standalone SVG document. Every node carries a
// data-sha attribute so a page can map clicks back to commits.
func WriteSVG(w io.Writer, scene Scene) error {
	sw := &svgWriter{w: bufio.NewWriter(w)}
	sw.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g" font-family="%s" font-size="%d">`+"\n",
		scene.Width, scene.Height, scene.Width, scene.Height, svgFont, svgFontSize)
	sw.printf(`<rect width="100%%" height="100%%" fill="%s"/>`+"\n", scene.Background)
	if b := scene.Selected; b != nil {
		sw.printf(`<rect class="selected" x="0" y="%g" width="%g" height="%g" fill="%s"/>`+"\n", b.Y, scene.Width, b.H, b.Color)
	}

	sw.printf(`<g class="lanes" fill="none" stroke-width="%g" stroke-linecap="round">`+"\n", LineWidth)
	for _, l := range scene.Lines {
		sw.printf(`<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s"%s/>`+"\n", l.X1, l.Y1, l.X2, l.Y2, l.Color, dashAttr(l.Dashed))
	}
	for _, c := range scene.Curves {
		sw.printf(`<path d="M%g %g C%g %g %g %g %g %g" stroke="%s"%s/>`+"\n",
			c.X1, c.Y1, c.C1X, c.C1Y, c.C2X, c.C2Y, c.X2, c.Y2, c.Color, dashAttr(c.Dashed))
	}
	sw.printf("</g>\n")

	sw.printf(`<g class="labels">` + "\n")
	for _, l := range scene.Labels {
		if l.ConnectX > 0 {
			sw.printf(`<line x1="%g" y1="%g" x2="%g" y2="%g" stroke="%s"/>`+"\n", l.ConnectX, l.Y+l.H/2, l.X, l.Y+l.H/2, l.Stroke)
		}
		class := "branch"
		if l.Current {
			class = "branch current"
		}
		sw.printf(`<rect class="%s" x="%g" y="%g" width="%g" height="%g" rx="3" fill="%s" stroke="%s"/>`+"\n",
			class, l.X, l.Y, l.W, l.H, l.Fill, l.Stroke)
		sw.printf(`<text x="%g" y="%g" dominant-baseline="central" fill="%s">`, l.X+labelPadX, l.Y+l.H/2, l.TextColor)
		sw.text(l.Text)
		sw.printf("</text>\n")
	}
	sw.printf("</g>\n")

	sw.printf(`<g class="nodes" stroke-width="%g">`+"\n", LineWidth)
	for _, n := range scene.Nodes {
		sw.printf(`<circle data-sha="%s" cx="%g" cy="%g" r="%g" fill="%s" stroke="%s"/>`+"\n", n.SHA, n.X, n.Y, n.R, n.Fill, n.Stroke)
	}
	sw.printf("</g>\n")

	sw.printf(`<g class="rows" dominant-baseline="central">` + "\n")
	for _, r := range scene.Rows {
		sw.printf(`<text x="%g" y="%g"><tspan fill="%s">`, r.X, r.Y, scene.Muted)
		sw.text(r.ShortSHA)
		sw.printf(`</tspan> <tspan fill="%s">`, scene.Foreground)
		sw.text(strings.TrimSpace(r.Subject))
		sw.printf("</tspan></text>\n")
	}
	sw.printf("</g>\n</svg>\n")

	if sw.err != nil {
		return fmt.Errorf("write svg: %w", sw.err)
	}
	if err := sw.w.Flush(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}
