package ui

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/readmanga/internal/util"
)

// Stats counts what a download run produced. Safe for concurrent use.
type Stats struct {
	TotalImages   atomic.Int64
	TotalBytes    atomic.Int64
	TotalChapters atomic.Int64
	Failed        atomic.Int64
}

func (s *Stats) AddChapter(images int, bytes int64) {
	s.TotalChapters.Add(1)
	s.TotalImages.Add(int64(images))
	s.TotalBytes.Add(bytes)
}

func (s *Stats) Print(w io.Writer, took time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Download Summary:")
	fmt.Fprintf(w, "Chapters: %d\n", s.TotalChapters.Load())
	if f := s.Failed.Load(); f > 0 {
		fmt.Fprintf(w, "Failed:   %d\n", f)
	}
	fmt.Fprintf(w, "Images:   %d\n", s.TotalImages.Load())
	fmt.Fprintf(w, "Data:     %s\n", util.Human(s.TotalBytes.Load()))
	fmt.Fprintf(w, "Time:     %s\n", took.Round(time.Second))
}
