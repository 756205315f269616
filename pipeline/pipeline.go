// Package pipeline assembles the canonical stage chains spec.md names
// throughout ("file ← zip ← hash" for backup, "file → unzip → hash" for
// restore) from a config.Config and a walk.Job, and adapts them into the
// pool.Routine shape a pool.Scheduler dispatches work through.
//
// Grounded on the teacher's xaction/demand package: the same idea of
// wrapping a primitive operation (there, an object copy/delete; here, a
// file backup/restore) as a schedulable, idle-aware unit of work dispatched
// by a worker pool rather than run inline.
package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/quietloop/vaultpipe/config"
	"github.com/quietloop/vaultpipe/internal/coreerr"
	"github.com/quietloop/vaultpipe/internal/xlog"
	"github.com/quietloop/vaultpipe/pool"
	"github.com/quietloop/vaultpipe/stage"
	"github.com/quietloop/vaultpipe/walk"
)

// archiveExt names the suffix a backup chain appends to a RelPath to get
// the stored archive's path under a vault root.
const archiveExt = ".vlt"

// copyBufSize is the buffer size used to drive Get/Put between the two
// ends of a stage chain; it has no bearing on correctness, only throughput.
const copyBufSize = 256 * 1024

// Result is what a Backup or Restore routine hands back to a pool.Scheduler's
// output queue: the originating job, the byte count written to the
// destination file (dst's Offset), the hex digest from the hashing stage,
// and any error encountered running the chain.
type Result struct {
	Job   walk.Job
	Bytes int64
	Hex   string
	Err   error
}

func digestFor(algorithm string) stage.Digest {
	if algorithm == "" {
		return stage.SHA256
	}
	return stage.Digest(algorithm)
}

// Backup builds and drives the file ← zip ← hash chain for one walk.Job:
// the plain source file is read, compressed, and written under vaultRoot
// with archiveExt appended to its relative path, while a Hasher wrapping
// the compressing writer digests the plain bytes handed to it, before
// compression — the same bytes Restore digests after decompression.
func Backup(job walk.Job, cfg *config.Config, vaultRoot string) (Result, error) {
	destPath := filepath.Join(vaultRoot, job.RelPath+archiveExt)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Result{Job: job}, coreerr.Wrap(coreerr.Resource, "pipeline.backup", err)
	}

	src := stage.NewFileReader(job.Path)
	dst := stage.NewHasher(
		stage.NewGzipWriter(stage.NewFileWriter(destPath), true, cfg.Compress.Level),
		true,
		digestFor(cfg.Digest.Algorithm),
	)

	res, err := run(job, src, dst, dst)
	if err != nil {
		xlog.Warningf("pipeline: backup %s failed: %v", job.RelPath, err)
	}
	return res, err
}

// Restore builds and drives the file → unzip → hash chain for one walk.Job:
// an archive previously written by Backup (job.Path points at it) is
// decompressed and digested in one pass, and the recovered plain bytes are
// written under destRoot at job.RelPath with archiveExt stripped.
func Restore(job walk.Job, cfg *config.Config, destRoot string) (Result, error) {
	relPlain := strippedArchiveExt(job.RelPath)
	destPath := filepath.Join(destRoot, relPlain)
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return Result{Job: job}, coreerr.Wrap(coreerr.Resource, "pipeline.restore", err)
	}

	src := stage.NewHasher(
		stage.NewGzipReader(stage.NewFileReader(job.Path), true),
		true,
		digestFor(cfg.Digest.Algorithm),
	)
	dst := stage.NewFileWriter(destPath)

	res, err := run(job, src, dst, src)
	if err != nil {
		xlog.Warningf("pipeline: restore %s failed: %v", job.RelPath, err)
	}
	return res, err
}

func strippedArchiveExt(rel string) string {
	if filepath.Ext(rel) == archiveExt {
		return rel[:len(rel)-len(archiveExt)]
	}
	return rel
}

// run opens src and dst, pumps bytes from src to dst with a fixed buffer,
// closes both (keeping the worst of the two close errors, same convention
// stage.base.Close uses), and reports dst's byte count (its Offset) and
// the hex digest hasher computed once it has seen every byte.
func run(job walk.Job, src, dst stage.Stage, hasher *stage.Hasher) (Result, error) {
	if err := src.Open(); err != nil {
		return Result{Job: job}, coreerr.Wrap(coreerr.Resource, "pipeline.run", err)
	}
	if err := dst.Open(); err != nil {
		_ = src.Close()
		return Result{Job: job}, coreerr.Wrap(coreerr.Resource, "pipeline.run", err)
	}

	buf := make([]byte, copyBufSize)
	var runErr error
copyLoop:
	for {
		n, err := src.Get(buf)
		if n > 0 {
			if _, werr := dst.Put(buf[:n]); werr != nil {
				runErr = coreerr.Wrap(coreerr.IO, "pipeline.run", werr)
				break copyLoop
			}
		}
		if err != nil {
			if err != io.EOF {
				runErr = coreerr.Wrap(coreerr.IO, "pipeline.run", err)
			}
			break copyLoop
		}
		if n == 0 {
			break copyLoop
		}
	}

	closeErr := worstClose(src.Close(), dst.Close())
	if runErr == nil {
		runErr = closeErr
	}

	res := Result{Job: job, Bytes: dst.Offset(), Hex: hasher.Hex, Err: runErr}
	return res, runErr
}

func worstClose(first, second error) error {
	if first != nil {
		return first
	}
	return second
}

// RoutineFor adapts a Backup- or Restore-shaped function into the
// func(item, user) interface{} shape pool.Scheduler dispatches through: the
// item is expected to be a walk.Job and user a *config.Config. vaultRoot is
// captured by closure so one pool.Routine always targets the same vault.
func RoutineFor(fn func(walk.Job, *config.Config, string) (Result, error), vaultRoot string) pool.Routine {
	return func(item interface{}, user interface{}) interface{} {
		job, ok := item.(walk.Job)
		if !ok {
			return Result{Err: coreerr.New(coreerr.InvalidUse, "pipeline.routine")}
		}
		cfg, ok := user.(*config.Config)
		if !ok {
			cfg = config.Default()
		}
		res, _ := fn(job, cfg, vaultRoot)
		return res
	}
}
