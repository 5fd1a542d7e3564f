package wire

import "fmt"

// Request is a client → server frame type.
type Request int16

const (
	ReqShutdown Request = 0

	// connection start
	ReqLogin Request = 1
	ReqAuth  Request = 2

	// info
	ReqExplore            Request = 3
	ReqServerToClientInit Request = 4 // download request
	ReqClientToServerInit Request = 5 // upload request

	// transmission
	ReqEof      Request = 254
	ReqFilePart Request = 255
)

func (t Request) String() string {
	switch t {
	case ReqShutdown:
		return "Shutdown"
	case ReqLogin:
		return "Login"
	case ReqAuth:
		return "Auth"
	case ReqExplore:
		return "Explore"
	case ReqServerToClientInit:
		return "ServerToClientInit"
	case ReqClientToServerInit:
		return "ClientToServerInit"
	case ReqEof:
		return "Eof"
	case ReqFilePart:
		return "FilePart"
	default:
		return fmt.Sprintf("Request(%d)", int16(t))
	}
}

// Reply is a server → client frame type.
type Reply int16

const (
	// connection start
	RepAuthCheckData Reply = 1
	RepAuthFailure   Reply = 2

	// info
	RepDirectoryContents    Reply = 3
	RepServerToClientAccept Reply = 4
	RepClientToServerAccept Reply = 5
	RepAccessFailure        Reply = 6
	RepAcceptFailure        Reply = 7

	// transmission
	RepEof      Reply = 254
	RepFilePart Reply = 255
)

func (t Reply) String() string {
	switch t {
	case RepAuthCheckData:
		return "AuthCheckData"
	case RepAuthFailure:
		return "AuthFailure"
	case RepDirectoryContents:
		return "DirectoryContents"
	case RepServerToClientAccept:
		return "ServerToClientAccept"
	case RepClientToServerAccept:
		return "ClientToServerAccept"
	case RepAccessFailure:
		return "AccessFailure"
	case RepAcceptFailure:
		return "AcceptFailure"
	case RepEof:
		return "Eof"
	case RepFilePart:
		return "FilePart"
	default:
		return fmt.Sprintf("Reply(%d)", int16(t))
	}
}

// Frame is one complete wire message.  Type is interpreted as a Request
// or a Reply depending on which side of the connection read it.
type Frame struct {
	Type    int16
	Payload []byte
}

// Request returns the frame type as seen by a server.
func (f Frame) Request() Request { return Request(f.Type) }

// Reply returns the frame type as seen by a client.
func (f Frame) Reply() Reply { return Reply(f.Type) }
