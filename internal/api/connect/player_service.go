package connect

import (
	"context"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/notification"
	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/domain/queue"
)

// PlayerServiceName is the fully-qualified name of the PlayerService.
const PlayerServiceName = "tapedeck.v1.PlayerService"

// Procedure paths of PlayerService.
const (
	PlayerServicePlayQueueProcedure     = "/" + PlayerServiceName + "/PlayQueue"
	PlayerServicePlayProcedure          = "/" + PlayerServiceName + "/Play"
	PlayerServicePauseProcedure         = "/" + PlayerServiceName + "/Pause"
	PlayerServiceSeekProcedure          = "/" + PlayerServiceName + "/Seek"
	PlayerServiceNextProcedure          = "/" + PlayerServiceName + "/Next"
	PlayerServicePreviousProcedure      = "/" + PlayerServiceName + "/Previous"
	PlayerServiceEnqueueProcedure       = "/" + PlayerServiceName + "/Enqueue"
	PlayerServiceJumpToEntryProcedure   = "/" + PlayerServiceName + "/JumpToEntry"
	PlayerServiceJumpToSubItemProcedure = "/" + PlayerServiceName + "/JumpToSubItem"
	PlayerServiceToggleRepeatProcedure  = "/" + PlayerServiceName + "/ToggleRepeat"
	PlayerServiceGetStateProcedure      = "/" + PlayerServiceName + "/GetState"
	PlayerServiceWatchStateProcedure    = "/" + PlayerServiceName + "/WatchState"
)

// Player is the playback controller surface exposed over RPC.
type Player interface {
	State() playback.State
	PlayQueue(ctx context.Context, refs []queue.Ref, at queue.Cursor) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Enqueue(ctx context.Context, refs []queue.Ref) error
	JumpToEntry(ctx context.Context, i int) error
	JumpToSubItem(ctx context.Context, i, s int) error
	ToggleRepeat(ctx context.Context) (playback.RepeatMode, error)
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player   Player
	notifier *notification.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(player Player, notifier *notification.Manager) *PlayerService {
	return &PlayerService{
		player:   player,
		notifier: notifier,
	}
}

// NewPlayerServiceHandler builds an HTTP handler serving s. It returns the
// path to mount the handler on.
func NewPlayerServiceHandler(s *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(PlayerServicePlayQueueProcedure, connect.NewUnaryHandler(PlayerServicePlayQueueProcedure, s.PlayQueue, opts...))
	mux.Handle(PlayerServicePlayProcedure, connect.NewUnaryHandler(PlayerServicePlayProcedure, s.Play, opts...))
	mux.Handle(PlayerServicePauseProcedure, connect.NewUnaryHandler(PlayerServicePauseProcedure, s.Pause, opts...))
	mux.Handle(PlayerServiceSeekProcedure, connect.NewUnaryHandler(PlayerServiceSeekProcedure, s.Seek, opts...))
	mux.Handle(PlayerServiceNextProcedure, connect.NewUnaryHandler(PlayerServiceNextProcedure, s.Next, opts...))
	mux.Handle(PlayerServicePreviousProcedure, connect.NewUnaryHandler(PlayerServicePreviousProcedure, s.Previous, opts...))
	mux.Handle(PlayerServiceEnqueueProcedure, connect.NewUnaryHandler(PlayerServiceEnqueueProcedure, s.Enqueue, opts...))
	mux.Handle(PlayerServiceJumpToEntryProcedure, connect.NewUnaryHandler(PlayerServiceJumpToEntryProcedure, s.JumpToEntry, opts...))
	mux.Handle(PlayerServiceJumpToSubItemProcedure, connect.NewUnaryHandler(PlayerServiceJumpToSubItemProcedure, s.JumpToSubItem, opts...))
	mux.Handle(PlayerServiceToggleRepeatProcedure, connect.NewUnaryHandler(PlayerServiceToggleRepeatProcedure, s.ToggleRepeat, opts...))
	mux.Handle(PlayerServiceGetStateProcedure, connect.NewUnaryHandler(PlayerServiceGetStateProcedure, s.GetState, opts...))
	mux.Handle(PlayerServiceWatchStateProcedure, connect.NewServerStreamHandler(PlayerServiceWatchStateProcedure, s.WatchState, opts...))

	return "/" + PlayerServiceName + "/", mux
}

// PlayQueue replaces the queue.
func (s *PlayerService) PlayQueue(
	ctx context.Context,
	req *connect.Request[PlayQueueRequest],
) (*connect.Response[PlayerState], error) {
	refs, err := queue.ParseRefs(req.Msg.Refs)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	at := queue.Cursor{Entry: req.Msg.Entry, Sub: req.Msg.Sub}
	return s.command("play_queue", func() error {
		return s.player.PlayQueue(ctx, refs, at)
	})
}

// Play resumes playback.
func (s *PlayerService) Play(
	ctx context.Context,
	_ *connect.Request[Empty],
) (*connect.Response[PlayerState], error) {
	return s.command("play", func() error { return s.player.Play(ctx) })
}

// Pause pauses playback.
func (s *PlayerService) Pause(
	ctx context.Context,
	_ *connect.Request[Empty],
) (*connect.Response[PlayerState], error) {
	return s.command("pause", func() error { return s.player.Pause(ctx) })
}

// Seek seeks inside the current track.
func (s *PlayerService) Seek(
	ctx context.Context,
	req *connect.Request[SeekRequest],
) (*connect.Response[PlayerState], error) {
	if req.Msg.PositionMs < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("position must not be negative"))
	}
	position := time.Duration(req.Msg.PositionMs) * time.Millisecond
	return s.command("seek", func() error { return s.player.Seek(ctx, position) })
}

// Next moves to the next track.
func (s *PlayerService) Next(
	ctx context.Context,
	_ *connect.Request[Empty],
) (*connect.Response[PlayerState], error) {
	return s.command("next", func() error { return s.player.Next(ctx) })
}

// Previous moves to the previous track.
func (s *PlayerService) Previous(
	ctx context.Context,
	_ *connect.Request[Empty],
) (*connect.Response[PlayerState], error) {
	return s.command("previous", func() error { return s.player.Previous(ctx) })
}

// Enqueue appends to the queue.
func (s *PlayerService) Enqueue(
	ctx context.Context,
	req *connect.Request[EnqueueRequest],
) (*connect.Response[PlayerState], error) {
	refs, err := queue.ParseRefs(req.Msg.Refs)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return s.command("enqueue", func() error { return s.player.Enqueue(ctx, refs) })
}

// JumpToEntry plays the first track of an entry.
func (s *PlayerService) JumpToEntry(
	ctx context.Context,
	req *connect.Request[JumpRequest],
) (*connect.Response[PlayerState], error) {
	return s.command("jump_to_entry", func() error { return s.player.JumpToEntry(ctx, req.Msg.Entry) })
}

// JumpToSubItem plays a track inside an entry.
func (s *PlayerService) JumpToSubItem(
	ctx context.Context,
	req *connect.Request[JumpRequest],
) (*connect.Response[PlayerState], error) {
	return s.command("jump_to_sub_item", func() error {
		return s.player.JumpToSubItem(ctx, req.Msg.Entry, req.Msg.Sub)
	})
}

// ToggleRepeat cycles the repeat mode.
func (s *PlayerService) ToggleRepeat(
	ctx context.Context,
	_ *connect.Request[Empty],
) (*connect.Response[ToggleRepeatResponse], error) {
	mode, err := s.player.ToggleRepeat(ctx)
	if err != nil {
		zlog.Warn().Msgf("rpc: command failed: command=toggle_repeat error=%v", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ToggleRepeatResponse{Repeat: mode.String()}), nil
}

// GetState returns the current state.
func (s *PlayerService) GetState(
	_ context.Context,
	_ *connect.Request[Empty],
) (*connect.Response[PlayerState], error) {
	return connect.NewResponse(newPlayerState(0, s.player.State())), nil
}

// WatchState streams state snapshots until the client goes away.
// Intermediate snapshots may be skipped; sequence numbers only increase.
func (s *PlayerService) WatchState(
	ctx context.Context,
	_ *connect.Request[Empty],
	stream *connect.ServerStream[PlayerState],
) error {
	adapter := &stateStream{stream: stream}
	defer adapter.close()

	// Nothing broadcast yet: start the client off with the current state.
	if s.notifier.Last() == nil {
		if err := adapter.Send(&notification.Notification{State: s.player.State()}); err != nil {
			return err
		}
	}

	id, done := s.notifier.Subscribe(adapter)
	defer s.notifier.Unsubscribe(id)

	select {
	case <-ctx.Done():
		return nil
	case <-done:
		if ctx.Err() != nil {
			return nil
		}
		return connect.NewError(connect.CodeUnavailable, errors.New("state stream closed"))
	}
}

// command runs fn and returns the resulting state.
func (s *PlayerService) command(name string, fn func() error) (*connect.Response[PlayerState], error) {
	zlog.Debug().Msgf("rpc: command: command=%s", name)
	if err := fn(); err != nil {
		zlog.Warn().Msgf("rpc: command failed: command=%s error=%v", name, err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(newPlayerState(0, s.player.State())), nil
}

// toConnectError maps controller and catalog errors to Connect codes.
func toConnectError(err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, resolve.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, resolve.ErrEmptyContainer),
		errors.Is(err, playback.ErrInvalidCursor),
		errors.Is(err, playback.ErrNoRefs):
		code = connect.CodeInvalidArgument
	case errors.Is(err, playback.ErrUnavailable):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, playback.ErrClosed):
		code = connect.CodeUnavailable
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, err)
}

var errStreamClosed = errors.New("stream closed")

// stateStream adapts connect.ServerStream to notification.Stream.
// Sends after the handler returned are rejected.
type stateStream struct {
	mu     sync.Mutex
	closed bool
	stream *connect.ServerStream[PlayerState]
}

func (a *stateStream) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(newPlayerState(n.SequenceNo, n.State))
}

func (a *stateStream) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
