// Command vaultd is the backend daemon: it holds a process-wide proclock,
// accepts one stream-socket connection at a time, and drives a
// request/response exchange framed with tlv over that connection, backed by
// a pool.Scheduler running pipeline.Backup or pipeline.Restore depending on
// the request frame that follows the client's start frame.
//
// This is a thin, intentionally minimal entrypoint (SPEC_FULL.md §7): it
// wires the core (socket + TLV + scheduler + pipeline) into something
// runnable, not a replacement for the out-of-scope config-file grammar or
// full daemon surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/quietloop/vaultpipe/config"
	"github.com/quietloop/vaultpipe/internal/coreerr"
	"github.com/quietloop/vaultpipe/internal/xlog"
	"github.com/quietloop/vaultpipe/pipeline"
	"github.com/quietloop/vaultpipe/pool"
	"github.com/quietloop/vaultpipe/proclock"
	"github.com/quietloop/vaultpipe/queue"
	"github.com/quietloop/vaultpipe/stage"
	"github.com/quietloop/vaultpipe/tlv"
	"github.com/quietloop/vaultpipe/walk"
)

// requestTag is the data tag vaultctl carries its request payload on,
// within the start/.../end message every tlv exchange is framed by. Any
// value outside the reserved control and log-range tags works; 1 is as
// good as any.
const requestTag uint16 = 1

// request is what one connection's inbound message decodes to: the
// operation ("backup" or "restore") and the root directory to walk.
type request struct {
	Op   string `json:"op"`
	Root string `json:"root"`
}

var requestJSON = jsoniter.ConfigCompatibleWithStandardLibrary

func decodeRequest(buf []byte, req *request) error {
	return requestJSON.Unmarshal(buf, req)
}

func main() {
	socketPath := flag.String("socket", "/var/run/vaultpipe.sock", "unix socket to listen on")
	vaultRoot := flag.String("vault", "/var/lib/vaultpipe", "vault root for stored archives")
	lockName := flag.String("lock", "/var/run/vaultd.lock", "process-lock path, prevents two daemons sharing one vault")
	flag.Parse()
	defer xlog.Infof("vaultd: shutting down")

	lock, err := proclock.New(*lockName)
	if err != nil {
		xlog.Errorf("vaultd: proclock.New: %v", err)
		os.Exit(1)
	}
	if err := lock.Lock(); err != nil {
		xlog.Errorf("vaultd: another vaultd instance already holds %q: %v", *lockName, err)
		os.Exit(1)
	}
	defer lock.Unlock()

	cfg := config.GCO.Get()

	ln := stage.NewUnixSocket(*socketPath, true)
	if err := ln.Listen(0); err != nil {
		xlog.Errorf("vaultd: listen on %s: %v", *socketPath, err)
		os.Exit(1)
	}
	defer ln.Release()
	xlog.Infof("vaultd: listening on %s, vault root %s", *socketPath, *vaultRoot)

	for {
		conn, err := ln.Accept()
		if err != nil {
			xlog.Warningf("vaultd: accept: %v", err)
			continue
		}
		serve(conn, cfg, *vaultRoot)
	}
}

// serve drives one connection end to end: receive a start/request/end
// message whose request frame names the operation and root, walk the given
// root, run every discovered file
// through a scheduler, and report a frame per completed job before ending
// the exchange.
func serve(conn *stage.Socket, cfg *config.Config, vaultRoot string) {
	defer conn.Close()

	receiver := tlv.NewReceiver(conn)
	sender := tlv.NewSender(conn)
	if err := sender.Start(); err != nil {
		xlog.Warningf("vaultd: reply start: %v", err)
		return
	}

	start, err := receiver.Receive()
	if err != nil || start.Type != tlv.StartType {
		xlog.Warningf("vaultd: expected start frame, got %v err=%v", start, err)
		_ = sender.Error(1)
		return
	}

	payload, err := receiver.Receive()
	if err != nil || payload.Type != tlv.DataType || payload.Tag != requestTag {
		xlog.Warningf("vaultd: expected request frame, got %v err=%v", payload, err)
		_ = sender.Error(1)
		return
	}

	var req request
	if jsonErr := decodeRequest(payload.Value, &req); jsonErr != nil {
		xlog.Warningf("vaultd: malformed request frame: %v", jsonErr)
		_ = sender.Error(1)
		return
	}

	if end, err := receiver.Receive(); err != nil || end.Type != tlv.EndType {
		xlog.Warningf("vaultd: expected end frame, got %v err=%v", end, err)
		_ = sender.Error(1)
		return
	}

	var routine pool.Routine
	switch req.Op {
	case "backup":
		routine = pipeline.RoutineFor(pipeline.Backup, vaultRoot)
	case "restore":
		routine = pipeline.RoutineFor(pipeline.Restore, vaultRoot)
	default:
		xlog.Warningf("vaultd: unknown op %q", req.Op)
		_ = sender.Error(1)
		return
	}

	qIn := queue.New(cfg.Queue.Capacity)
	qIn.Open()
	qOut := queue.New(cfg.Queue.Capacity)
	qOut.Open()

	sched := pool.New("vaultd", qIn, qOut, routine, cfg)
	if err := sched.Start(cfg.Pool.MaxThreads, cfg.Pool.MinThreads, cfg.Pool.IdleTO); err != nil {
		xlog.Errorf("vaultd: scheduler start: %v", err)
		_ = sender.Error(1)
		return
	}

	done := make(chan error, 1)
	go func() {
		w := walk.New(req.Root, "", nil)
		done <- w.Run(context.Background(), qIn)
	}()

	reportDone := make(chan struct{})
	go reportResults(qOut, sender, reportDone)

	walkErr := <-done
	qIn.Close()
	sched.Stop()
	qOut.Close()
	<-reportDone

	if walkErr != nil && !coreerr.Is(walkErr, coreerr.Flushed) {
		xlog.Warningf("vaultd: walk: %v", walkErr)
		_ = sender.Error(1)
		return
	}
	if err := sender.End(); err != nil {
		xlog.Warningf("vaultd: end: %v", err)
	}
}

// reportResults drains qOut, sending one check frame per pipeline.Result
// back to the client, until qOut is closed and empty.
func reportResults(qOut *queue.Bounded, sender *tlv.Sender, done chan<- struct{}) {
	defer close(done)
	for {
		item, ok := qOut.Pop()
		if !ok {
			return
		}
		res, ok := item.(pipeline.Result)
		if !ok {
			continue
		}
		status := fmt.Sprintf("%s %d %s", res.Job.RelPath, res.Bytes, res.Hex)
		if res.Err != nil {
			status = fmt.Sprintf("%s ERROR %v", res.Job.RelPath, res.Err)
		}
		if err := sender.Write(tlv.CheckTag, []byte(status)); err != nil {
			xlog.Warningf("vaultd: report write: %v", err)
			return
		}
	}
}
