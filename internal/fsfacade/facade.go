// Package fsfacade translates generic file-explorer requests into remote
// session calls and enforces the profile's editability policy. Requests
// arrive as a tagged type validated here, before anything reaches the core.
package fsfacade

import (
	"context"
	"fmt"

	"remote-sync/internal/remotefs"
	"remote-sync/internal/xerr"
)

// Op tags one filesystem request.
type Op string

const (
	OpList    Op = "list"
	OpStat    Op = "stat"
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpMkdir   Op = "mkdir"
	OpDelete  Op = "delete"
	OpRename  Op = "rename"
	OpRefresh Op = "refresh"
)

// Request is the discriminated request type crossing the UI boundary.
type Request struct {
	Op   Op
	Path string
	Data []byte // write payload
}

// Response carries whichever result the operation produces.
type Response struct {
	Entries []remotefs.Entry
	Entry   remotefs.Entry
	Data    []byte
}

// Facade gates one remote session behind the profile's editable flag. The
// session itself never enforces permissions; this boundary does.
type Facade struct {
	session  *remotefs.Session
	editable bool
}

func New(session *remotefs.Session, editable bool) *Facade {
	return &Facade{session: session, editable: editable}
}

// Handle validates and dispatches one request.
func (f *Facade) Handle(ctx context.Context, req Request) (Response, error) {
	if err := validate(req); err != nil {
		return Response{}, err
	}

	switch req.Op {
	case OpList:
		entries, err := f.session.ListDirectory(ctx, req.Path)
		return Response{Entries: entries}, err
	case OpStat:
		entry, err := f.session.Stat(ctx, req.Path)
		return Response{Entry: entry}, err
	case OpRead:
		data, err := f.session.ReadFile(ctx, req.Path)
		return Response{Data: data}, err
	case OpWrite:
		if !f.editable {
			return Response{}, xerr.PermissionDenied(req.Path)
		}
		return Response{}, f.session.WriteFile(ctx, req.Path, req.Data)
	case OpRefresh:
		f.session.ClearCache()
		return Response{}, nil
	case OpMkdir, OpDelete, OpRename:
		// no best-effort emulation: surface the capability gap
		return Response{}, xerr.NotSupported(string(req.Op))
	}
	return Response{}, xerr.Validation(fmt.Sprintf("unknown operation %q", req.Op))
}

func validate(req Request) error {
	switch req.Op {
	case OpRefresh:
		return nil
	case OpList, OpStat, OpRead, OpWrite, OpMkdir, OpDelete, OpRename:
		if req.Path == "" {
			return xerr.Validation(fmt.Sprintf("operation %q requires a path", req.Op))
		}
		return nil
	}
	return xerr.Validation(fmt.Sprintf("unknown operation %q", req.Op))
}
