package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"             _      _   _       ", "#818cf8"},
	{" _ __   __ _| | ___| |_| |_ ___ ", "#a78bfa"},
	{"| '_ \\ / _` | |/ _ \\ __| __/ _ \\", "#c084fc"},
	{"| |_) | (_| | |  __/ |_| ||  __/", "#e879f9"},
	{"| .__/ \\__,_|_|\\___|\\__|\\__\\___|", "#f472b6"},
	{"|_|", "#fb7185"},
}

// PrintBanner writes the palette banner and version to w.
// Colors degrade to plain text when w is not a terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
