// Package wire defines the LoftFS remote protocol: XDR-encoded call/reply
// messages carried in record-marked TCP fragments, one procedure per
// session operation.
package wire

import "fmt"

// Program and version identifying LoftFS calls on the wire.
const (
	ProgramLoft uint32 = 0x4c4f4654 // "LOFT"
	Version     uint32 = 1
)

// Message types.
const (
	MsgTypeCall  uint32 = 0
	MsgTypeReply uint32 = 1
)

// Reply status codes.
const (
	StatusAccepted     uint32 = 0
	StatusProgUnavail  uint32 = 1
	StatusProcUnavail  uint32 = 2
	StatusAuthRequired uint32 = 3
	StatusSystemErr    uint32 = 4
)

// Procedure numbers.
const (
	ProcNull uint32 = iota
	ProcRegister
	ProcLogin
	ProcListFiles
	ProcChangeDirectory
	ProcCreateFolder
	ProcRename
	ProcMove
	ProcUpload
	ProcDownload
	ProcDelete
	ProcShare
	ProcGetPath
	ProcPollEvents
	ProcLogout
)

// procedureNames maps procedure numbers to wire-level names, for logs and
// metrics labels.
var procedureNames = map[uint32]string{
	ProcNull:            "Null",
	ProcRegister:        "Register",
	ProcLogin:           "Login",
	ProcListFiles:       "ListFiles",
	ProcChangeDirectory: "ChangeDirectory",
	ProcCreateFolder:    "CreateFolder",
	ProcRename:          "Rename",
	ProcMove:            "Move",
	ProcUpload:          "Upload",
	ProcDownload:        "Download",
	ProcDelete:          "Delete",
	ProcShare:           "Share",
	ProcGetPath:         "GetPath",
	ProcPollEvents:      "PollEvents",
	ProcLogout:          "Logout",
}

// ProcedureName returns the symbolic name of a procedure number.
func ProcedureName(procedure uint32) string {
	if name, ok := procedureNames[procedure]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", procedure)
}

// CallHeader precedes every request body.
type CallHeader struct {
	XID       uint32
	MsgType   uint32
	Program   uint32
	Version   uint32
	Procedure uint32
}

// ReplyHeader precedes every reply body. Status other than StatusAccepted
// means the body is absent.
type ReplyHeader struct {
	XID     uint32
	MsgType uint32
	Status  uint32
}

// StatusReply is the common result of mutating operations: a success flag
// plus a human-readable outcome message.
type StatusReply struct {
	OK      bool
	Message string
}

type RegisterRequest struct {
	Username string
	Password string
}

type LoginRequest struct {
	Username string
	Password string
}

type ListFilesReply struct {
	Names []string
}

type ChangeDirectoryRequest struct {
	Token string
}

type CreateFolderRequest struct {
	Name string
}

type RenameRequest struct {
	OldName string
	NewName string
}

type MoveRequest struct {
	Item         string
	TargetFolder string
}

type UploadRequest struct {
	Filename string
	Data     []byte
}

type DownloadRequest struct {
	Filename string
}

// DownloadReply carries the payload; Found is false and Data empty when the
// file is absent or unreadable.
type DownloadReply struct {
	Found bool
	Data  []byte
}

type DeleteRequest struct {
	Name string
}

type ShareRequest struct {
	Name     string
	Username string
}

type GetPathReply struct {
	Path string
}

// Event is one state-change record delivered to a polling session.
type Event struct {
	Kind     string
	Message  string
	UnixTime int64
}

type PollEventsReply struct {
	Events []Event
}
