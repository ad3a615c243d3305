package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"amoebotsim.ai/internal/sim/world"
)

// runHeadless steps the world until it halts or limit rounds have run (0 = no limit) and
// prints the final counters and hull approximation.
func runHeadless(ctx context.Context, w *world.World, limit uint64, out io.Writer) error {
	start := time.Now()
	from := w.Rounds()
	err := w.RunUntilTermination(ctx, limit)

	fmt.Fprintf(out, "world=%s rounds=%d (+%d) movements=%d particles=%d tiles=%d leader=%d terminated=%v elapsed=%s\n",
		w.ID(), w.Rounds(), w.Rounds()-from, w.Movements(), w.NumParticles(), w.NumTiles(), w.Leader(),
		w.HasTerminated(), time.Since(start).Round(time.Millisecond))
	if hull, herr := w.HullVertices(); herr == nil {
		fmt.Fprint(out, "hull:")
		for _, v := range hull {
			fmt.Fprintf(out, " %v", v)
		}
		fmt.Fprintln(out)
	}
	if f := w.Fault(); f != nil {
		fmt.Fprintf(out, "fault: %v\n", f)
	}
	return err
}
