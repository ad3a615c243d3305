package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Round   uint64 `json:"round"`
}

// SnapshotV1 is a complete, restorable system state taken between rounds.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   uint64   `json:"seed"`
	Params ParamsV1 `json:"params"`

	RoundRateHz         int  `json:"round_rate_hz"`
	SnapshotEveryRounds int  `json:"snapshot_every_rounds,omitempty"`
	DebugConnectivity   bool `json:"debug_connectivity,omitempty"`
	PullChildren        bool `json:"pull_children,omitempty"`

	// RNG is the binary state of the scheduler's PCG source.
	RNG []byte `json:"rng_state"`

	Movements uint64 `json:"movements"`
	Leader    int    `json:"leader"`
	Fault     string `json:"fault,omitempty"`

	Tiles     []NodeV1     `json:"tiles"`
	Particles []ParticleV1 `json:"particles"`
}

type ParamsV1 struct {
	ParticleCount   int     `json:"particle_count"`
	TileCount       int     `json:"tile_count"`
	HoleProbability float64 `json:"hole_probability"`
}

type NodeV1 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ParticleV1 is stored in ID order.
type ParticleV1 struct {
	ID            int    `json:"id"`
	Head          NodeV1 `json:"head"`
	GlobalTailDir int    `json:"global_tail_dir"`
	Orientation   int    `json:"orientation"`

	State     uint8  `json:"state"`
	ParentDir int    `json:"parent_dir"`
	MoveDir   int    `json:"move_dir"`
	Distance  [6]int `json:"distance"`
	Completed [6]int `json:"completed"`
}

// FileName is the conventional snapshot file name for a round.
func FileName(round uint64) string {
	return fmt.Sprintf("%d.snap.zst", round)
}

// Latest returns the snapshot in dir with the highest round, or "" if there is none.
// Files not named by FileName are ignored.
func Latest(dir string) (path string, round uint64) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", 0
	}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		r, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if path == "" || r > round {
			path, round = filepath.Join(dir, name), r
		}
	}
	return path, round
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line is a cheap preview; the gob body carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
