package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/loftlabs/loftfs/internal/logger"
	"github.com/loftlabs/loftfs/internal/protocol/wire"
	"github.com/loftlabs/loftfs/pkg/storage"
)

// conn serves one client connection. A connection is anonymous until a
// successful Login binds a session to it; Logout or disconnect releases the
// session and its notification sink.
type conn struct {
	server  *Server
	conn    net.Conn
	session *storage.Session
}

func (c *conn) serve(ctx context.Context) {
	if m := c.server.metrics; m != nil {
		m.ConnectionOpened()
	}
	defer func() {
		c.dropSession()
		c.conn.Close()
		if m := c.server.metrics; m != nil {
			m.ConnectionClosed()
		}
	}()

	logger.Debug("new connection from %s", c.conn.RemoteAddr())

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := c.handleRequest(ctx); err != nil {
				if err != io.EOF {
					logger.Debug("connection %s: %v", c.conn.RemoteAddr(), err)
				}
				return
			}
		}
	}
}

func (c *conn) handleRequest(ctx context.Context) error {
	message, err := wire.ReadFrame(c.conn)
	if err != nil {
		return err
	}

	call, body, err := wire.DecodeCall(message)
	if err != nil {
		// A malformed header leaves nothing to reply to.
		return fmt.Errorf("decode call: %w", err)
	}

	logger.Debug("call XID=0x%x %s from %s", call.XID, wire.ProcedureName(call.Procedure), c.conn.RemoteAddr())

	if call.Program != wire.ProgramLoft || call.Version != wire.Version {
		return c.sendReply(call.XID, wire.StatusProgUnavail, nil)
	}

	start := time.Now()
	status, reply := c.dispatch(ctx, call.Procedure, body)
	if m := c.server.metrics; m != nil {
		m.RecordRequest(wire.ProcedureName(call.Procedure), time.Since(start), status == wire.StatusAccepted)
	}
	return c.sendReply(call.XID, status, reply)
}

// dispatch routes one procedure call, returning the reply status and body.
func (c *conn) dispatch(ctx context.Context, procedure uint32, body []byte) (uint32, any) {
	switch procedure {
	case wire.ProcNull:
		return wire.StatusAccepted, nil
	case wire.ProcRegister:
		return c.handleRegister(ctx, body)
	case wire.ProcLogin:
		return c.handleLogin(ctx, body)
	case wire.ProcLogout:
		return c.handleLogout()
	}

	// Everything else operates on the bound session.
	if c.session == nil {
		return wire.StatusAuthRequired, nil
	}

	switch procedure {
	case wire.ProcListFiles:
		return wire.StatusAccepted, &wire.ListFilesReply{Names: c.session.ListFiles()}

	case wire.ProcChangeDirectory:
		var req wire.ChangeDirectoryRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		if !c.session.ChangeDirectory(req.Token) {
			return wire.StatusAccepted, &wire.StatusReply{OK: false, Message: fmt.Sprintf("cannot enter %q", req.Token)}
		}
		return wire.StatusAccepted, &wire.StatusReply{OK: true, Message: c.session.GetPath()}

	case wire.ProcCreateFolder:
		var req wire.CreateFolderRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		ok, msg := c.session.CreateFolder(ctx, req.Name)
		return wire.StatusAccepted, &wire.StatusReply{OK: ok, Message: msg}

	case wire.ProcRename:
		var req wire.RenameRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		ok, msg := c.session.Rename(ctx, req.OldName, req.NewName)
		return wire.StatusAccepted, &wire.StatusReply{OK: ok, Message: msg}

	case wire.ProcMove:
		var req wire.MoveRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		ok, msg := c.session.Move(ctx, req.Item, req.TargetFolder)
		return wire.StatusAccepted, &wire.StatusReply{OK: ok, Message: msg}

	case wire.ProcUpload:
		var req wire.UploadRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		ok, msg := c.session.Upload(ctx, req.Filename, req.Data)
		if ok {
			if m := c.server.metrics; m != nil {
				m.RecordUploadBytes(len(req.Data))
			}
		}
		return wire.StatusAccepted, &wire.StatusReply{OK: ok, Message: msg}

	case wire.ProcDownload:
		var req wire.DownloadRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		data := c.session.Download(ctx, req.Filename)
		if m := c.server.metrics; m != nil {
			m.RecordDownloadBytes(len(data))
		}
		return wire.StatusAccepted, &wire.DownloadReply{Found: data != nil, Data: data}

	case wire.ProcDelete:
		var req wire.DeleteRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		ok, msg := c.session.Delete(ctx, req.Name)
		return wire.StatusAccepted, &wire.StatusReply{OK: ok, Message: msg}

	case wire.ProcShare:
		var req wire.ShareRequest
		if err := wire.DecodeBody(body, &req); err != nil {
			return wire.StatusSystemErr, nil
		}
		ok, msg := c.session.Share(ctx, req.Name, req.Username)
		return wire.StatusAccepted, &wire.StatusReply{OK: ok, Message: msg}

	case wire.ProcGetPath:
		return wire.StatusAccepted, &wire.GetPathReply{Path: c.session.GetPath()}

	case wire.ProcPollEvents:
		pending := c.session.PollEvents()
		events := make([]wire.Event, 0, len(pending))
		for _, n := range pending {
			events = append(events, wire.Event{
				Kind:     string(n.Kind),
				Message:  n.Message,
				UnixTime: n.Time.Unix(),
			})
		}
		return wire.StatusAccepted, &wire.PollEventsReply{Events: events}
	}

	logger.Debug("unknown procedure: %d", procedure)
	return wire.StatusProcUnavail, nil
}

func (c *conn) handleRegister(ctx context.Context, body []byte) (uint32, any) {
	var req wire.RegisterRequest
	if err := wire.DecodeBody(body, &req); err != nil {
		return wire.StatusSystemErr, nil
	}

	ok, err := c.server.auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		logger.Error("register %q: %v", req.Username, err)
		return wire.StatusSystemErr, nil
	}
	if !ok {
		return wire.StatusAccepted, &wire.StatusReply{OK: false, Message: fmt.Sprintf("username %q is taken", req.Username)}
	}

	logger.Info("registered user %q", req.Username)
	return wire.StatusAccepted, &wire.StatusReply{OK: true, Message: fmt.Sprintf("registered %q", req.Username)}
}

func (c *conn) handleLogin(ctx context.Context, body []byte) (uint32, any) {
	var req wire.LoginRequest
	if err := wire.DecodeBody(body, &req); err != nil {
		return wire.StatusSystemErr, nil
	}

	ok, err := c.server.auth.Verify(ctx, req.Username, req.Password)
	if err != nil {
		logger.Error("login %q: %v", req.Username, err)
		return wire.StatusSystemErr, nil
	}
	if !ok {
		return wire.StatusAccepted, &wire.StatusReply{OK: false, Message: "invalid credentials"}
	}

	session, err := storage.NewSession(req.Username, c.server.layout, c.server.propagator, c.server.bus)
	if err != nil {
		logger.Error("initialize session for %q: %v", req.Username, err)
		return wire.StatusSystemErr, nil
	}

	c.dropSession()
	c.session = session
	if m := c.server.metrics; m != nil {
		m.SessionOpened()
	}

	logger.Info("user %q logged in from %s", req.Username, c.conn.RemoteAddr())
	return wire.StatusAccepted, &wire.StatusReply{OK: true, Message: fmt.Sprintf("welcome, %s", req.Username)}
}

func (c *conn) handleLogout() (uint32, any) {
	if c.session == nil {
		return wire.StatusAuthRequired, nil
	}

	logger.Info("user %q logged out", c.session.Username())
	c.dropSession()
	return wire.StatusAccepted, &wire.StatusReply{OK: true, Message: "logged out"}
}

// dropSession closes and clears the bound session, if any.
func (c *conn) dropSession() {
	if c.session == nil {
		return
	}
	c.session.Close()
	c.session = nil
	if m := c.server.metrics; m != nil {
		m.SessionClosed()
	}
}

func (c *conn) sendReply(xid, status uint32, body any) error {
	reply, err := wire.EncodeReply(xid, status, body)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	if err := wire.WriteFrame(c.conn, reply); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
