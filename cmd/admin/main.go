package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"amoebotsim.ai/internal/persistence/snapshot"
	"amoebotsim.ai/internal/sim/convexhull"
	"amoebotsim.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// inspectCmd summarizes a snapshot offline: counters, the hull approximation, and the
// inspection text of every particle.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used when -snapshot is empty)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	particles := fs.Bool("particles", false, "print inspection text for every particle")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -snapshot or -world")
			os.Exit(2)
		}
		path, _ = snapshot.Latest(filepath.Join(*dataDir, "worlds", *worldID, "snapshots"))
		if path == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
			os.Exit(2)
		}
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	w, err := world.New(world.WorldConfig{
		ID:              snap.Header.WorldID,
		Seed:            snap.Seed,
		ParticleCount:   snap.Params.ParticleCount,
		TileCount:       snap.Params.TileCount,
		HoleProbability: snap.Params.HoleProbability,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	sum := summarize(w)
	if *asJSON {
		printJSON(sum)
	} else {
		fmt.Printf("snapshot v%d world=%s round=%d seed=%d particles=%d tiles=%d movements=%d leader=%d terminated=%v\n",
			snap.Header.Version, sum.WorldID, sum.Round, snap.Seed, sum.Particles, sum.Tiles, sum.Movements, sum.Leader, sum.Terminated)
		if sum.Fault != "" {
			fmt.Printf("fault: %s\n", sum.Fault)
		}
		if len(sum.Hull) > 0 {
			fmt.Printf("hull: %s\n", strings.Join(sum.Hull, " "))
		}
		for _, st := range []convexhull.State{convexhull.Leader, convexhull.Follower, convexhull.Idle, convexhull.Done} {
			if n := sum.States[st.String()]; n > 0 {
				fmt.Printf("state %s: %d\n", st, n)
			}
		}
	}
	if *particles {
		for _, p := range w.Particles() {
			fmt.Printf("--- particle %d\n%s", p.ID, convexhull.InspectionText(p))
		}
	}
}

type summary struct {
	WorldID    string         `json:"world_id"`
	Round      uint64         `json:"round"`
	Particles  int            `json:"particles"`
	Tiles      int            `json:"tiles"`
	Movements  uint64         `json:"movements"`
	Leader     int            `json:"leader"`
	Terminated bool           `json:"terminated"`
	Fault      string         `json:"fault,omitempty"`
	Hull       []string       `json:"hull,omitempty"`
	States     map[string]int `json:"states"`
}

func summarize(w *world.World) summary {
	s := summary{
		WorldID:    w.ID(),
		Round:      w.Rounds(),
		Particles:  w.NumParticles(),
		Tiles:      w.NumTiles(),
		Movements:  w.Movements(),
		Leader:     int(w.Leader()),
		Terminated: w.HasTerminated(),
		States:     map[string]int{},
	}
	if err := w.Fault(); err != nil {
		s.Fault = err.Error()
	}
	if hull, err := w.HullVertices(); err == nil {
		for _, v := range hull {
			s.Hull = append(s.Hull, v.String())
		}
	}
	for _, p := range w.Particles() {
		s.States[p.Mem.State.String()]++
	}
	return s
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
