package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/lyricbox/internal/app/coordinator"
	"github.com/osa030/lyricbox/internal/app/notification"
)

const (
	// PlayerServiceName is the fully-qualified name of the PlayerService service.
	PlayerServiceName = "lyricbox.player.v1.PlayerService"

	// PlayerServiceCommandProcedure is the path of the unary Command RPC.
	PlayerServiceCommandProcedure = "/" + PlayerServiceName + "/Command"
	// PlayerServiceSubscribeProcedure is the path of the server-streaming Subscribe RPC.
	PlayerServiceSubscribeProcedure = "/" + PlayerServiceName + "/Subscribe"
)

// Controller receives player intents.
type Controller interface {
	FetchTrack() error
	Play() error
	Pause() error
	BeginSeeking() error
	EndSeeking() error
	Seek(fraction float64) error
	SeekTime(seconds float64) error
}

// Broadcaster delivers ViewState snapshots to subscribers.
type Broadcaster interface {
	Subscribe() *notification.Subscription
	Unsubscribe(subscriptionID string)
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	controller  Controller
	broadcaster Broadcaster
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(controller Controller, broadcaster Broadcaster) *PlayerService {
	return &PlayerService{
		controller:  controller,
		broadcaster: broadcaster,
	}
}

// Command dispatches one intent to the coordinator.
func (s *PlayerService) Command(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[emptypb.Empty], error) {
	cmd, err := DecodeCommand(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	zlog.Debug().Msgf("api: command: intent=%s value=%g", cmd.Intent, cmd.Value)
	if err := s.dispatch(cmd); err != nil {
		if errors.Is(err, coordinator.ErrClosed) {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (s *PlayerService) dispatch(cmd Command) error {
	switch cmd.Intent {
	case IntentFetch:
		return s.controller.FetchTrack()
	case IntentPlay:
		return s.controller.Play()
	case IntentPause:
		return s.controller.Pause()
	case IntentBeginSeeking:
		return s.controller.BeginSeeking()
	case IntentEndSeeking:
		return s.controller.EndSeeking()
	case IntentSeek:
		return s.controller.Seek(cmd.Value)
	case IntentSeekTime:
		return s.controller.SeekTime(cmd.Value)
	default:
		return errors.Newf("unsupported intent: %s", cmd.Intent)
	}
}

// Subscribe streams ViewState snapshots, starting with the current one.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C:
			if !ok {
				return nil
			}
			msg, err := EncodeNotification(n)
			if err != nil {
				return connect.NewError(connect.CodeInternal, err)
			}
			if err := stream.Send(msg); err != nil {
				zlog.Debug().Msgf("api: subscriber gone: id=%s error=%v", sub.ID, err)
				return err
			}
		}
	}
}

// NewPlayerServiceHandler builds an HTTP handler that serves both procedures.
// Command requires token when it is non-empty; Subscribe is always open.
func NewPlayerServiceHandler(svc *PlayerService, token string, opts ...connect.HandlerOption) (string, http.Handler) {
	commandOpts := append([]connect.HandlerOption{
		connect.WithInterceptors(NewTokenAuthInterceptor(token)),
	}, opts...)

	commandHandler := connect.NewUnaryHandler(
		PlayerServiceCommandProcedure,
		svc.Command,
		commandOpts...,
	)
	subscribeHandler := connect.NewServerStreamHandler(
		PlayerServiceSubscribeProcedure,
		svc.Subscribe,
		opts...,
	)

	return "/" + PlayerServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PlayerServiceCommandProcedure:
			commandHandler.ServeHTTP(w, r)
		case PlayerServiceSubscribeProcedure:
			subscribeHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
