package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/lyricbox/internal/app/notification"
)

// PlayerClient is a client for the PlayerService.
type PlayerClient struct {
	command   *connect.Client[structpb.Struct, emptypb.Empty]
	subscribe *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewPlayerClient creates a client for the service at baseURL.
func NewPlayerClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *PlayerClient {
	baseURL = strings.TrimRight(baseURL, "/")
	commandOpts := append([]connect.ClientOption{
		connect.WithInterceptors(NewTokenHeaderInterceptor(token)),
	}, opts...)

	return &PlayerClient{
		command: connect.NewClient[structpb.Struct, emptypb.Empty](
			httpClient,
			baseURL+PlayerServiceCommandProcedure,
			commandOpts...,
		),
		subscribe: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient,
			baseURL+PlayerServiceSubscribeProcedure,
			opts...,
		),
	}
}

// Send issues one intent.
func (c *PlayerClient) Send(ctx context.Context, intent string, value float64) error {
	msg, err := EncodeCommand(Command{Intent: intent, Value: value})
	if err != nil {
		return err
	}
	_, err = c.command.CallUnary(ctx, connect.NewRequest(msg))
	return err
}

// Subscribe opens the snapshot stream.
func (c *PlayerClient) Subscribe(ctx context.Context) (*SnapshotStream, error) {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return &SnapshotStream{stream: stream}, nil
}

// SnapshotStream decodes received snapshots.
type SnapshotStream struct {
	stream  *connect.ServerStreamForClient[structpb.Struct]
	current notification.Notification
	err     error
}

// Receive advances to the next snapshot. It returns false when the stream ends or fails.
func (s *SnapshotStream) Receive() bool {
	if s.err != nil || !s.stream.Receive() {
		return false
	}
	n, err := DecodeNotification(s.stream.Msg())
	if err != nil {
		s.err = err
		return false
	}
	s.current = n
	return true
}

// Notification returns the snapshot read by the last Receive.
func (s *SnapshotStream) Notification() notification.Notification {
	return s.current
}

// Err returns the error that ended the stream, if any.
func (s *SnapshotStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.stream.Err()
}

// Close closes the stream.
func (s *SnapshotStream) Close() error {
	return s.stream.Close()
}
