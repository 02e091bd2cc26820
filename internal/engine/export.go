package engine

import (
	"encoding/base64"
	"strings"

	"github.com/akolanti/GoChunker/internal/tables"
)

// RenderMarkdown exports elements as markdown. Media is appended as inline
// base64 images so the OCR sub-pipeline can find it. Each table element has
// its Line set to where its pipe rows start in the output, or 0 when it
// rendered nothing.
func RenderMarkdown(elements []Element, media []EmbeddedImage) string {
	blocks := make([]string, 0, len(elements)+len(media))
	line := 1
	for i, el := range elements {
		before := len(blocks)
		switch el.Kind {
		case KindHeading:
			level := el.Level
			if level < 1 {
				level = 2
			}
			blocks = append(blocks, strings.Repeat("#", level)+" "+el.Text)
		case KindTable:
			elements[i].Line = 0
			if md := tables.ToMarkdown(el.Grid); md != "" {
				elements[i].Line = line
				blocks = append(blocks, md)
			}
		case KindListItem:
			blocks = append(blocks, "- "+el.Text)
		case KindParagraph:
			if el.Label == "code" {
				blocks = append(blocks, "```\n"+el.Text+"\n```")
			} else {
				blocks = append(blocks, el.Text)
			}
		default:
			blocks = append(blocks, el.Text)
		}
		if len(blocks) > before {
			line += strings.Count(blocks[len(blocks)-1], "\n") + 2
		}
	}
	for _, img := range media {
		blocks = append(blocks, "![Image](data:image/"+img.Format+";base64,"+base64.StdEncoding.EncodeToString(img.Data)+")")
	}
	return strings.Join(blocks, "\n\n")
}
