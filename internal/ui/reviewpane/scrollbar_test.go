package reviewpane

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestScrollbar_Thumb(t *testing.T) {
	tests := []struct {
		name      string
		bar       scrollbar
		wantStart int
		wantSize  int
	}{
		{name: "fits", bar: scrollbar{totalRows: 10, height: 20}, wantStart: 0, wantSize: 20},
		{name: "top", bar: scrollbar{totalRows: 100, height: 20}, wantStart: 0, wantSize: 4},
		{name: "bottom", bar: scrollbar{totalRows: 100, height: 20, offset: 80}, wantStart: 16, wantSize: 4},
		{name: "middle", bar: scrollbar{totalRows: 100, height: 20, offset: 40}, wantStart: 8, wantSize: 4},
		{name: "huge content keeps one row", bar: scrollbar{totalRows: 100000, height: 10}, wantStart: 0, wantSize: 1},
		{name: "empty", bar: scrollbar{}, wantStart: 0, wantSize: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, size := tt.bar.thumb()
			require.Equal(t, tt.wantStart, start)
			require.Equal(t, tt.wantSize, size)
		})
	}
}

func TestScrollbar_Render(t *testing.T) {
	require.Equal(t, "", scrollbar{}.render())
	require.Equal(t, " \n \n ", scrollbar{totalRows: 2, height: 3}.render())

	out := scrollbar{totalRows: 100, height: 10, offset: 0}.render()
	require.Len(t, strings.Split(out, "\n"), 10)
	require.Contains(t, out, scrollbarThumbChar)
	require.Contains(t, out, scrollbarTrackChar)
}

func TestProperty_ThumbWithinTrack(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bar := scrollbar{
			totalRows: rapid.IntRange(1, 10000).Draw(t, "total"),
			height:    rapid.IntRange(1, 200).Draw(t, "height"),
		}
		bar.offset = rapid.IntRange(-10, bar.totalRows+10).Draw(t, "offset")

		start, size := bar.thumb()
		if size < 1 || start < 0 || start+size > bar.height {
			t.Fatalf("thumb [%d,+%d) outside track of %d", start, size, bar.height)
		}
	})
}
