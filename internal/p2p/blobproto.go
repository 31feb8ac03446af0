package p2p

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"blobnet/internal/domain"
	"blobnet/internal/storage/blob"
	"blobnet/internal/version"
)

// ProtocolBlob is the request/response protocol for fetching one blob.
const ProtocolBlob = version.BlobProtocol

const (
	// maxMessageSize bounds a framed message; blobs are at most 2 MiB
	// and travel base64 encoded.
	maxMessageSize = 8 * 1024 * 1024

	serverStreamTimeout = 30 * time.Second
)

// MessageType identifies the type of protocol message.
type MessageType string

const (
	MsgGetBlob MessageType = "get_blob"
	MsgBlob    MessageType = "blob"
	MsgError   MessageType = "error"
)

// Error codes carried in ErrorPayload.
const (
	CodeBadRequest = 400
	CodeNotFound   = 404
	CodeInternal   = 500
)

// Message is one framed protocol message.
type Message struct {
	Type      MessageType   `json:"type"`
	RequestID string        `json:"request_id"`
	BlobHash  string        `json:"blob_hash,omitempty"`
	Data      []byte        `json:"data,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload contains error information.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// readMessage reads a length-prefixed JSON message.
func readMessage(r io.Reader) (*Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d bytes", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// writeMessage writes a length-prefixed JSON message.
func writeMessage(w io.Writer, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if len(body) > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(body))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// BlobServer answers blob requests from the local store.
type BlobServer struct {
	host  host.Host
	store blob.Store
}

// NewBlobServer registers the blob protocol handler on h.
func NewBlobServer(h host.Host, store blob.Store) *BlobServer {
	s := &BlobServer{host: h, store: store}
	h.SetStreamHandler(ProtocolBlob, s.handleStream)
	return s
}

// Close removes the stream handler.
func (s *BlobServer) Close() {
	s.host.RemoveStreamHandler(ProtocolBlob)
}

func (s *BlobServer) handleStream(stream network.Stream) {
	defer stream.Close()
	_ = stream.SetDeadline(time.Now().Add(serverStreamTimeout))
	remote := stream.Conn().RemotePeer()

	req, err := readMessage(stream)
	if err != nil {
		s.writeError(stream, "", CodeBadRequest, "failed to read message: "+err.Error())
		return
	}
	if req.Type != MsgGetBlob {
		s.writeError(stream, req.RequestID, CodeBadRequest, "unknown message type: "+string(req.Type))
		return
	}

	id, err := domain.ParsePieceID(req.BlobHash)
	if err != nil {
		s.writeError(stream, req.RequestID, CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverStreamTimeout)
	defer cancel()

	data, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(stream, req.RequestID, CodeNotFound, "blob not found")
		return
	case err != nil:
		getLogger("blobserver").Warn("failed to read blob", "blob", id, "peer", remote, "error", err)
		s.writeError(stream, req.RequestID, CodeInternal, "failed to read blob")
		return
	}

	resp := &Message{Type: MsgBlob, RequestID: req.RequestID, BlobHash: id.String(), Data: data}
	if err := writeMessage(stream, resp); err != nil {
		getLogger("blobserver").Debug("failed to send blob", "blob", id, "peer", remote, "error", err)
		return
	}
	getLogger("blobserver").Debug("served blob", "blob", id, "peer", remote, "size", len(data))
}

func (s *BlobServer) writeError(stream network.Stream, requestID string, code int, message string) {
	_ = writeMessage(stream, &Message{
		Type:      MsgError,
		RequestID: requestID,
		Error:     &ErrorPayload{Code: code, Message: message},
	})
}

// BlobClient requests blobs from remote peers.
type BlobClient struct {
	host host.Host
}

// NewBlobClient creates a client on h.
func NewBlobClient(h host.Host) *BlobClient {
	return &BlobClient{host: h}
}

// RequestBlob asks peerID for one blob. The returned data is not verified.
// Errors are classified as domain.ErrTimeout, domain.ErrNotFound or
// domain.ErrTransport.
func (c *BlobClient) RequestBlob(ctx context.Context, peerID peer.ID, id domain.PieceID) ([]byte, error) {
	stream, err := c.host.NewStream(ctx, peerID, ProtocolBlob)
	if err != nil {
		return nil, classifyStreamError(ctx, fmt.Errorf("failed to open stream: %w", err))
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	req := &Message{Type: MsgGetBlob, RequestID: uuid.New().String(), BlobHash: id.String()}
	if err := writeMessage(stream, req); err != nil {
		return nil, classifyStreamError(ctx, fmt.Errorf("failed to write request: %w", err))
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, classifyStreamError(ctx, err)
	}

	resp, err := readMessage(stream)
	if err != nil {
		return nil, classifyStreamError(ctx, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.Error != nil {
		if resp.Error.Code == CodeNotFound {
			return nil, fmt.Errorf("%w: peer %s does not have blob %s", domain.ErrNotFound, peerID, id)
		}
		return nil, fmt.Errorf("%w: peer %s: %s", domain.ErrTransport, peerID, resp.Error.Message)
	}
	if resp.Type != MsgBlob || resp.BlobHash != id.String() {
		return nil, fmt.Errorf("%w: unexpected response %q for %s", domain.ErrTransport, resp.Type, id)
	}
	return resp.Data, nil
}

// classifyStreamError maps stream failures onto the domain taxonomy.
func classifyStreamError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransport, err)
}
