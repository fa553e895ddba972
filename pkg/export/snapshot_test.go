package export

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/retro/pkg/model"
)

func TestSaveSnapshot_SVGAndPNG(t *testing.T) {
	def, cards := testBoard()
	tmp := t.TempDir()
	for _, name := range []string{"board.svg", "board.png"} {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(tmp, name)
			if err := SaveSnapshot(SnapshotOptions{Path: out, Board: def, Cards: cards}); err != nil {
				t.Fatalf("SaveSnapshot: %v", err)
			}
			info, err := os.Stat(out)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("output file is empty")
			}
		})
	}
}

func TestSaveSnapshot_Errors(t *testing.T) {
	def, cards := testBoard()
	tmp := t.TempDir()

	if err := SaveSnapshot(SnapshotOptions{Path: filepath.Join(tmp, "b.gif"), Format: "gif", Board: def, Cards: cards}); err == nil {
		t.Errorf("gif should be rejected")
	}
	if err := SaveSnapshot(SnapshotOptions{Format: "svg", Board: def, Cards: cards}); err == nil {
		t.Errorf("empty path should be rejected")
	}
	if err := SaveSnapshot(SnapshotOptions{Path: filepath.Join(tmp, "b.svg"), Board: model.Board{ID: "x"}}); err == nil {
		t.Errorf("board without columns should be rejected")
	}
}

func TestSVG_WellFormedAndEscaped(t *testing.T) {
	def, cards := testBoard()
	cards[0].Title = "Dangerous <script>"
	out := filepath.Join(t.TempDir(), "board.svg")
	if err := SaveSnapshot(SnapshotOptions{Path: out, Board: def, Cards: cards}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	svg := string(data)

	dec := xml.NewDecoder(strings.NewReader(svg))
	for {
		if _, err := dec.Token(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("invalid XML: %v", err)
		}
	}
	if !strings.Contains(svg, "Dangerous &lt;script&gt;") {
		t.Errorf("card title should be escaped")
	}
	for _, want := range []string{"Sprint 12 (Vote)", "Went badly (0)", "No flaky tests"} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg should contain %q", want)
		}
	}
}

func TestBuildLayout(t *testing.T) {
	def, cards := testBoard()
	l := buildLayout(def, cards)

	if len(l.Lanes) != 3 {
		t.Fatalf("lanes = %d, want 3", len(l.Lanes))
	}
	if want := margin*2 + 3*laneWidth + 2*laneGap; l.Width != want {
		t.Errorf("width = %d, want %d", l.Width, want)
	}
	good := l.Lanes[0]
	if len(good.Boxes) != 3 {
		t.Fatalf("good lane boxes = %d, want 3", len(good.Boxes))
	}
	if good.Boxes[0].Title != "Green CI" || good.Boxes[1].Title != "No flaky tests" || !good.Boxes[1].Child {
		t.Errorf("child should follow its head: %+v", good.Boxes)
	}
	if good.Boxes[1].X <= good.Boxes[0].X {
		t.Errorf("child should be indented")
	}
	if float64(l.Height) < good.Boxes[2].Y+good.Boxes[2].H {
		t.Errorf("height %d does not fit the last card", l.Height)
	}
}

func TestParseHex(t *testing.T) {
	if got := css(parseHex("#107c10")); got != "#107c10" {
		t.Errorf("parseHex = %s", got)
	}
	if got := css(parseHex("teal")); got != model.DefaultAccentColor {
		t.Errorf("fallback = %s, want %s", got, model.DefaultAccentColor)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"a longer title", 8, "a lon..."},
		{"abcdef", 3, "abc"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
