package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/bamsammich/bucketctl/internal/remote"
)

const (
	sizeColumn = 10
	timeLayout = "2006-01-02 15:04"
)

// RenderListing writes one line per entry of l followed by a summary.
// Directories come first, each group in listing order.
func RenderListing(w io.Writer, l remote.Listing) error {
	var b strings.Builder
	b.WriteString(styleHeader.Render(l.Path.String()))
	b.WriteByte('\n')

	var files, dirs int64
	var total int64
	for _, dirPass := range []bool{true, false} {
		for _, e := range l.Entries {
			if e.IsDir != dirPass {
				continue
			}
			b.WriteString(renderEntry(e))
			b.WriteByte('\n')
			if e.IsDir {
				dirs++
				continue
			}
			files++
			if e.Size > 0 {
				total += e.Size
			}
		}
	}

	summary := fmt.Sprintf("%d dirs  %d files  %s", dirs, files, FormatBytes(total))
	b.WriteString(styleSummary.Render(summary))
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

func renderEntry(e remote.Entry) string {
	when := strings.Repeat(" ", len(timeLayout))
	if !e.Time.IsZero() {
		when = e.Time.Local().Format(timeLayout)
	}

	name := styleFile.Render(e.Name)
	size := FormatSize(e.Size)
	if e.IsDir {
		name = styleDir.Render(e.Name + "/")
		size = "-"
	}

	line := styleSize.Render(size) + "  " + styleMuted.Render(when) + "  " + name
	if e.Unsure {
		line += " " + styleUnsure.Render("(pending)")
	}
	return line
}
