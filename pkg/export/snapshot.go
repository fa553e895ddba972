package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/retro/pkg/board"
	"github.com/vanderheijden86/retro/pkg/model"
)

// SnapshotOptions controls board snapshot export.
type SnapshotOptions struct {
	Path   string // format inferred from the extension when Format is empty
	Format string // "svg" or "png"
	Board  model.Board
	Cards  []model.Card
}

// SaveSnapshot renders a static picture of the board (SVG or PNG): one lane
// per column, top-level cards in phase order, grouped cards indented below
// their head.
func SaveSnapshot(opts SnapshotOptions) error {
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".png":
			format = "png"
		default:
			format = "svg"
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if len(opts.Board.Columns) == 0 {
		return fmt.Errorf("board %s has no columns", opts.Board.ID)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildLayout(opts.Board, opts.Cards)
	if format == "png" {
		return renderPNG(opts.Path, layout)
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return renderSVG(f, layout)
}

const (
	laneWidth   = 260
	laneGap     = 16
	margin      = 16
	headerH     = 72
	laneTitleH  = 32
	cardH       = 44
	childH      = 24
	cardGap     = 8
	titleChars  = 34
	childIndent = 16
)

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorCard     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorChild    = color.RGBA{0xee, 0xee, 0xee, 0xff}
	colorStroke   = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}
	colorText     = color.RGBA{0x11, 0x18, 0x27, 0xff}
	colorSubtle   = color.RGBA{0x4b, 0x55, 0x63, 0xff}
)

type layoutBox struct {
	X, Y, W, H float64
	Title      string
	Meta       string
	Child      bool
}

type layoutLane struct {
	X      float64
	Title  string
	Accent color.RGBA
	Boxes  []layoutBox
}

type layoutResult struct {
	Width, Height int
	Title         string
	Summary       string
	Lanes         []layoutLane
}

func buildLayout(def model.Board, cards []model.Card) layoutResult {
	cols := Columns(def, cards)
	slides := board.CarouselOf(cols, def.Phase)
	sum := Summarize(cols)

	title := def.Title
	if title == "" {
		title = "Retrospective"
	}
	res := layoutResult{
		Title: fmt.Sprintf("%s (%s)", title, def.Phase.Title()),
		Summary: fmt.Sprintf("cards: %d  groups: %d  votes: %d  mean %.1f ± %.1f",
			sum.Cards, sum.Groups, sum.Votes, sum.VoteMean, sum.VoteStdDev),
	}

	bottom := float64(headerH + margin + laneTitleH)
	for i, col := range cols {
		lane := layoutLane{
			X:      float64(margin + i*(laneWidth+laneGap)),
			Title:  fmt.Sprintf("%s (%d)", col.Column.Title, len(col.Cards)),
			Accent: parseHex(col.Column.AccentColor),
		}
		y := float64(headerH + margin + laneTitleH + cardGap)
		for _, s := range slides {
			if s.Column.ID != col.Column.ID {
				continue
			}
			lane.Boxes = append(lane.Boxes, layoutBox{
				X: lane.X, Y: y, W: laneWidth, H: cardH,
				Title: truncate(s.Card.Title, titleChars),
				Meta:  strings.TrimPrefix(cardSuffix(s.Card), " · "),
			})
			y += cardH + 2
			for _, child := range s.Children {
				lane.Boxes = append(lane.Boxes, layoutBox{
					X: lane.X + childIndent, Y: y, W: laneWidth - childIndent, H: childH,
					Title: truncate(child.Title, titleChars-2),
					Child: true,
				})
				y += childH + 2
			}
			y += cardGap
		}
		bottom = max(bottom, y)
		res.Lanes = append(res.Lanes, lane)
	}
	res.Width = margin*2 + len(cols)*laneWidth + (len(cols)-1)*laneGap
	res.Height = int(bottom) + margin
	return res
}

func renderPNG(path string, layout layoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(margin, margin, float64(layout.Width)-2*margin, headerH-margin, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Title, 32, 36, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(layout.Summary, 32, 56, 0, 0.5)

	for _, lane := range layout.Lanes {
		dc.SetColor(lane.Accent)
		dc.DrawRoundedRectangle(lane.X, headerH+margin, laneWidth, laneTitleH-4, 6)
		dc.Fill()
		dc.SetColor(colorCard)
		dc.DrawStringAnchored(truncate(lane.Title, titleChars), lane.X+10, headerH+margin+14, 0, 0.5)

		for _, b := range lane.Boxes {
			fill := colorCard
			if b.Child {
				fill = colorChild
			}
			dc.SetColor(fill)
			dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 6)
			dc.Fill()
			dc.SetColor(colorStroke)
			dc.SetLineWidth(1.2)
			dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 6)
			dc.Stroke()

			dc.SetColor(colorText)
			dc.DrawStringAnchored(b.Title, b.X+10, b.Y+14, 0, 0.5)
			if b.Meta != "" {
				dc.SetColor(colorSubtle)
				dc.DrawStringAnchored(b.Meta, b.X+10, b.Y+32, 0, 0.5)
			}
		}
	}
	return dc.SavePNG(path)
}

func renderSVG(w io.Writer, layout layoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(margin, margin, layout.Width-2*margin, headerH-margin, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 40, layout.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 60, layout.Summary, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))

	for _, lane := range layout.Lanes {
		x := int(lane.X)
		canvas.Roundrect(x, headerH+margin, laneWidth, laneTitleH-4, 6, 6, fmt.Sprintf("fill:%s", css(lane.Accent)))
		canvas.Text(x+10, headerH+margin+18, truncate(lane.Title, titleChars),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorCard)))

		for _, b := range lane.Boxes {
			fill := colorCard
			if b.Child {
				fill = colorChild
			}
			bx, by := int(b.X), int(b.Y)
			canvas.Roundrect(bx, by, int(b.W), int(b.H), 6, 6,
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(fill), css(colorStroke)))
			canvas.Text(bx+10, by+17, b.Title, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
			if b.Meta != "" {
				canvas.Text(bx+10, by+35, b.Meta, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
			}
		}
	}
	canvas.End()
	return nil
}

// parseHex reads a #rrggbb accent colour, falling back to the default accent.
func parseHex(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%2x%2x%2x", &r, &g, &b); err != nil {
		return color.RGBA{0x00, 0x78, 0xd4, 0xff}
	}
	return color.RGBA{r, g, b, 0xff}
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
