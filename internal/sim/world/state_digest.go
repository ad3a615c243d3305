package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"amoebotsim.ai/internal/sim/amoebot"
	"amoebotsim.ai/internal/sim/convexhull"
)

// stateDigest hashes everything the next round depends on: counters, the leader
// reference, the scheduler state, tiles and particles in ID order.
func (w *World) stateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.rounds.Load())
	digestWriteU64(h, &tmp, w.sys.Movements())
	digestWriteI64(h, &tmp, int64(w.sys.Leader()))
	h.Write([]byte{boolByte(w.fault != nil)})
	if b, err := w.src.MarshalBinary(); err == nil {
		h.Write(b)
	}

	for _, n := range w.tiles {
		digestWriteI64(h, &tmp, int64(n.X))
		digestWriteI64(h, &tmp, int64(n.Y))
	}
	w.sys.Each(func(p *amoebot.Particle[convexhull.Memory]) {
		digestParticle(h, &tmp, p)
	})
	return hex.EncodeToString(h.Sum(nil))
}

func digestParticle(h hashWriter, tmp *[8]byte, p *amoebot.Particle[convexhull.Memory]) {
	digestWriteI64(h, tmp, int64(p.ID))
	digestWriteI64(h, tmp, int64(p.Head.X))
	digestWriteI64(h, tmp, int64(p.Head.Y))
	digestWriteI64(h, tmp, int64(p.GlobalTailDir))
	digestWriteI64(h, tmp, int64(p.Orientation))

	m := p.Mem
	h.Write([]byte{byte(m.State)})
	digestWriteI64(h, tmp, int64(m.ParentDir))
	digestWriteI64(h, tmp, int64(m.MoveDir))
	for _, v := range m.Distance {
		digestWriteI64(h, tmp, int64(v))
	}
	for _, v := range m.Completed {
		digestWriteI64(h, tmp, int64(v))
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
