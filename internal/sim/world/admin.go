package world

import (
	"context"
	"errors"

	"amoebotsim.ai/internal/observerproto"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Round uint64
	Err   string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (round uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	req := adminSnapshotReq{Resp: resp}

	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Round, errors.New(r.Err)
		}
		return r.Round, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequest(req adminSnapshotReq) {
	round := w.rounds.Load()
	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		select {
		case w.snapshotSink <- w.ExportSnapshot():
		default:
			errStr = "snapshot sink backpressure"
		}
	}
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- adminSnapshotResp{Round: round, Err: errStr}:
	default:
		// Client timed out; don't block the sim loop.
	}
}

type stateReq struct {
	Resp chan observerproto.RoundMsg
}

// RequestState returns the current configuration, with inspection text, as seen by the
// world loop goroutine.
func (w *World) RequestState(ctx context.Context) (observerproto.RoundMsg, error) {
	if w == nil || w.stateReq == nil {
		return observerproto.RoundMsg{}, errors.New("state not available")
	}
	resp := make(chan observerproto.RoundMsg, 1)
	select {
	case w.stateReq <- stateReq{Resp: resp}:
	case <-ctx.Done():
		return observerproto.RoundMsg{}, ctx.Err()
	}
	select {
	case msg := <-resp:
		return msg, nil
	case <-ctx.Done():
		return observerproto.RoundMsg{}, ctx.Err()
	}
}

func (w *World) handleStateRequest(req stateReq) {
	if req.Resp == nil {
		return
	}
	select {
	case req.Resp <- w.buildRoundMsg(true):
	default:
	}
}
