package session

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	ncerr "nnfp/internal/errors"
	"nnfp/internal/pathpolicy"
	"nnfp/internal/wire"
)

// ── Directory listing ────────────────────────────────────────────────

// explore replies with the children of raw: sub-directories suffixed
// with '/' first, then everything else.  Any failure is an
// AccessFailure; a partial listing is never sent.
func (s *Session) explore(raw string) error {
	dir, err := pathpolicy.Resolve(raw, s.home(), pathpolicy.Directory)
	if err != nil {
		s.log.Verbose("explore %q: %v", raw, err)
		return s.reply(wire.RepAccessFailure, nil)
	}

	entries, err := listDirectory(dir)
	if err != nil {
		s.log.Verbose("explore %q: %v", raw, err)
		return s.reply(wire.RepAccessFailure, nil)
	}
	payload, err := wire.EncodeDirectory(entries)
	if err != nil {
		s.log.Verbose("explore %q: %v", raw, err)
		return s.reply(wire.RepAccessFailure, nil)
	}
	s.log.Debug("explore %q: %d entries", raw, len(entries))
	return s.reply(wire.RepDirectoryContents, payload)
}

func listDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name()+"/")
		} else {
			files = append(files, e.Name())
		}
	}
	return append(dirs, files...), nil
}

// ── Download (server → client) ───────────────────────────────────────

// download streams raw to the peer and returns only after the trailing
// Eof has been written.  Nothing else on this session is read meanwhile.
func (s *Session) download(raw string) error {
	path, err := pathpolicy.Resolve(raw, s.home(), pathpolicy.File)
	if err != nil {
		s.log.Verbose("download %q: %v", raw, err)
		return s.reply(wire.RepAccessFailure, nil)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.log.Verbose("download %q: not a file", raw)
		return s.reply(wire.RepAcceptFailure, nil)
	}
	f, err := os.Open(path)
	if err != nil {
		s.log.Verbose("download %q: %v", raw, err)
		return s.reply(wire.RepAcceptFailure, nil)
	}
	defer f.Close()

	id := s.sends.Next()
	if err := s.reply(wire.RepServerToClientAccept, wire.EncodeDownloadAccept(info.Size(), id)); err != nil {
		return err
	}
	s.log.Verbose("download %d: %s (%d bytes)", id, raw, info.Size())

	buf := s.bufs.Get()
	defer s.bufs.Put(buf)
	frame := *buf
	wire.PutTransmissionID(frame, id)

	var sent int64
	for {
		n, rerr := f.Read(frame[wire.TransmissionIDLen:])
		if n > 0 {
			if err := s.reply(wire.RepFilePart, frame[:wire.TransmissionIDLen+n]); err != nil {
				return err
			}
			sent += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("download %d: read %s: %w", id, path, rerr)
		}
	}

	if err := s.reply(wire.RepEof, nil); err != nil {
		return err
	}
	s.metrics.DownloadCompleted()
	s.log.Verbose("download %d: done, %d bytes", id, sent)
	return nil
}

// ── Upload (client → server) ─────────────────────────────────────────

// beginUpload creates raw (never overwriting) and registers it in the
// transmission table.
func (s *Session) beginUpload(raw string) error {
	path, err := pathpolicy.Resolve(raw, s.home(), pathpolicy.File)
	if err != nil {
		s.log.Verbose("upload %q: %v", raw, err)
		return s.reply(wire.RepAccessFailure, nil)
	}

	if _, err := os.Lstat(path); err == nil {
		s.log.Verbose("upload %q: already exists", raw)
		return s.reply(wire.RepAcceptFailure, nil)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		s.log.Verbose("upload %q: %v", raw, err)
		if errors.Is(err, fs.ErrExist) {
			return s.reply(wire.RepAcceptFailure, nil)
		}
		return s.reply(wire.RepAccessFailure, nil)
	}

	id := s.uploads.Open(f, path)
	s.log.Verbose("upload %d: %s", id, raw)
	return s.reply(wire.RepClientToServerAccept, wire.EncodeTransmissionID(id))
}

func (s *Session) filePart(f wire.Frame) error {
	id, chunk, err := wire.SplitFilePart(f.Payload)
	if err != nil {
		return ncerr.Violation("file-part", f.Type, err)
	}
	if err := s.uploads.Append(id, chunk); err != nil {
		if errors.Is(err, ncerr.ErrUnknownTransmission) {
			return ncerr.Violation("file-part", f.Type, err)
		}
		return err
	}
	return nil
}

func (s *Session) finishUpload(f wire.Frame) error {
	id, err := wire.DecodeTransmissionID(f.Payload)
	if err != nil {
		return ncerr.Violation("eof", f.Type, err)
	}
	up, err := s.uploads.Finish(id)
	if err != nil {
		if errors.Is(err, ncerr.ErrUnknownTransmission) {
			return ncerr.Violation("eof", f.Type, err)
		}
		return err
	}
	s.metrics.UploadCompleted()
	s.log.Verbose("upload %d: done, %d bytes", id, up.Written)
	return nil
}
