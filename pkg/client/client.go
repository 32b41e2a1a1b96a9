// Package client implements a LoftFS wire-protocol client. One Client wraps
// one TCP connection and therefore one server-side session; calls are issued
// sequentially, matching the request/reply framing of the protocol.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/loftlabs/loftfs/internal/protocol/wire"
)

// Client is a connected LoftFS client. It is safe for concurrent use; calls
// are serialized on the underlying connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	xid  uint32
}

// Dial connects to a LoftFS server at the given TCP address.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection, ending the server-side session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call issues one procedure and decodes the reply body into out (when out is
// non-nil). Non-accepted reply statuses become errors.
func (c *Client) call(procedure uint32, req, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.xid++
	message, err := wire.EncodeCall(c.xid, procedure, req)
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(c.conn, message); err != nil {
		return fmt.Errorf("send call: %w", err)
	}

	replyMessage, err := wire.ReadFrame(c.conn)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	header, body, err := wire.DecodeReply(replyMessage)
	if err != nil {
		return err
	}
	if header.XID != c.xid {
		return fmt.Errorf("reply XID mismatch: sent 0x%x, got 0x%x", c.xid, header.XID)
	}

	switch header.Status {
	case wire.StatusAccepted:
	case wire.StatusAuthRequired:
		return fmt.Errorf("not logged in")
	case wire.StatusProgUnavail:
		return fmt.Errorf("server does not speak this protocol version")
	case wire.StatusProcUnavail:
		return fmt.Errorf("procedure %d not available", procedure)
	default:
		return fmt.Errorf("server error (status %d)", header.Status)
	}

	if out != nil {
		if err := wire.DecodeBody(body, out); err != nil {
			return err
		}
	}
	return nil
}

// Null is a no-op round trip, useful as a connectivity check.
func (c *Client) Null() error {
	return c.call(wire.ProcNull, nil, nil)
}

// Register creates a new account. The returned flag reports whether the
// username was accepted; the message explains the outcome.
func (c *Client) Register(username, password string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcRegister, &wire.RegisterRequest{Username: username, Password: password}, &reply)
	return reply.OK, reply.Message, err
}

// Login authenticates and binds a session to this connection.
func (c *Client) Login(username, password string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcLogin, &wire.LoginRequest{Username: username, Password: password}, &reply)
	return reply.OK, reply.Message, err
}

// Logout releases the server-side session but keeps the connection open.
func (c *Client) Logout() error {
	var reply wire.StatusReply
	return c.call(wire.ProcLogout, nil, &reply)
}

// ListFiles returns the entries of the current directory, sorted.
func (c *Client) ListFiles() ([]string, error) {
	var reply wire.ListFilesReply
	if err := c.call(wire.ProcListFiles, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Names, nil
}

// ChangeDirectory moves the session cursor by one path token. On success the
// message carries the new logical path.
func (c *Client) ChangeDirectory(token string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcChangeDirectory, &wire.ChangeDirectoryRequest{Token: token}, &reply)
	return reply.OK, reply.Message, err
}

// CreateFolder creates a directory in the current directory.
func (c *Client) CreateFolder(name string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcCreateFolder, &wire.CreateFolderRequest{Name: name}, &reply)
	return reply.OK, reply.Message, err
}

// Rename renames an entry of the current directory.
func (c *Client) Rename(oldName, newName string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcRename, &wire.RenameRequest{OldName: oldName, NewName: newName}, &reply)
	return reply.OK, reply.Message, err
}

// Move relocates an entry of the current directory into a sibling folder.
func (c *Client) Move(item, targetFolder string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcMove, &wire.MoveRequest{Item: item, TargetFolder: targetFolder}, &reply)
	return reply.OK, reply.Message, err
}

// Upload stores a file in the current directory.
func (c *Client) Upload(filename string, data []byte) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcUpload, &wire.UploadRequest{Filename: filename, Data: data}, &reply)
	return reply.OK, reply.Message, err
}

// Download fetches a file from the current directory. A nil slice with a
// false flag means the file was not found.
func (c *Client) Download(filename string) ([]byte, bool, error) {
	var reply wire.DownloadReply
	if err := c.call(wire.ProcDownload, &wire.DownloadRequest{Filename: filename}, &reply); err != nil {
		return nil, false, err
	}
	return reply.Data, reply.Found, nil
}

// Delete removes an entry of the current directory.
func (c *Client) Delete(name string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcDelete, &wire.DeleteRequest{Name: name}, &reply)
	return reply.OK, reply.Message, err
}

// Share grants another user access to an entry of the current directory.
func (c *Client) Share(name, username string) (bool, string, error) {
	var reply wire.StatusReply
	err := c.call(wire.ProcShare, &wire.ShareRequest{Name: name, Username: username}, &reply)
	return reply.OK, reply.Message, err
}

// GetPath returns the session's current logical path.
func (c *Client) GetPath() (string, error) {
	var reply wire.GetPathReply
	if err := c.call(wire.ProcGetPath, nil, &reply); err != nil {
		return "", err
	}
	return reply.Path, nil
}

// PollEvents drains notifications queued for this session since the last
// poll. An empty slice means nothing happened.
func (c *Client) PollEvents() ([]wire.Event, error) {
	var reply wire.PollEventsReply
	if err := c.call(wire.ProcPollEvents, nil, &reply); err != nil {
		return nil, err
	}
	return reply.Events, nil
}
