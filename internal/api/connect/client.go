package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// PlayerServiceClient is a client for PlayerService.
type PlayerServiceClient struct {
	token string

	playQueue     *connect.Client[PlayQueueRequest, PlayerState]
	play          *connect.Client[Empty, PlayerState]
	pause         *connect.Client[Empty, PlayerState]
	seek          *connect.Client[SeekRequest, PlayerState]
	next          *connect.Client[Empty, PlayerState]
	previous      *connect.Client[Empty, PlayerState]
	enqueue       *connect.Client[EnqueueRequest, PlayerState]
	jumpToEntry   *connect.Client[JumpRequest, PlayerState]
	jumpToSubItem *connect.Client[JumpRequest, PlayerState]
	toggleRepeat  *connect.Client[Empty, ToggleRepeatResponse]
	getState      *connect.Client[Empty, PlayerState]
	watchState    *connect.Client[Empty, PlayerState]
}

// NewPlayerServiceClient creates a client for the PlayerService served at
// baseURL. token is sent with every request.
func NewPlayerServiceClient(
	httpClient connect.HTTPClient,
	baseURL string,
	token string,
	opts ...connect.ClientOption,
) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)

	return &PlayerServiceClient{
		token:         token,
		playQueue:     connect.NewClient[PlayQueueRequest, PlayerState](httpClient, baseURL+PlayerServicePlayQueueProcedure, opts...),
		play:          connect.NewClient[Empty, PlayerState](httpClient, baseURL+PlayerServicePlayProcedure, opts...),
		pause:         connect.NewClient[Empty, PlayerState](httpClient, baseURL+PlayerServicePauseProcedure, opts...),
		seek:          connect.NewClient[SeekRequest, PlayerState](httpClient, baseURL+PlayerServiceSeekProcedure, opts...),
		next:          connect.NewClient[Empty, PlayerState](httpClient, baseURL+PlayerServiceNextProcedure, opts...),
		previous:      connect.NewClient[Empty, PlayerState](httpClient, baseURL+PlayerServicePreviousProcedure, opts...),
		enqueue:       connect.NewClient[EnqueueRequest, PlayerState](httpClient, baseURL+PlayerServiceEnqueueProcedure, opts...),
		jumpToEntry:   connect.NewClient[JumpRequest, PlayerState](httpClient, baseURL+PlayerServiceJumpToEntryProcedure, opts...),
		jumpToSubItem: connect.NewClient[JumpRequest, PlayerState](httpClient, baseURL+PlayerServiceJumpToSubItemProcedure, opts...),
		toggleRepeat:  connect.NewClient[Empty, ToggleRepeatResponse](httpClient, baseURL+PlayerServiceToggleRepeatProcedure, opts...),
		getState:      connect.NewClient[Empty, PlayerState](httpClient, baseURL+PlayerServiceGetStateProcedure, opts...),
		watchState:    connect.NewClient[Empty, PlayerState](httpClient, baseURL+PlayerServiceWatchStateProcedure, opts...),
	}
}

func newRequest[T any](msg *T, token string) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(ControlTokenHeader, token)
	return req
}

func unary[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], msg *Req, token string) (*Res, error) {
	resp, err := c.CallUnary(ctx, newRequest(msg, token))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// PlayQueue replaces the queue with refs and starts playing at (entry, sub).
func (c *PlayerServiceClient) PlayQueue(ctx context.Context, refs []string, entry, sub int) (*PlayerState, error) {
	return unary(ctx, c.playQueue, &PlayQueueRequest{Refs: refs, Entry: entry, Sub: sub}, c.token)
}

// Play resumes playback.
func (c *PlayerServiceClient) Play(ctx context.Context) (*PlayerState, error) {
	return unary(ctx, c.play, &Empty{}, c.token)
}

// Pause pauses playback.
func (c *PlayerServiceClient) Pause(ctx context.Context) (*PlayerState, error) {
	return unary(ctx, c.pause, &Empty{}, c.token)
}

// Seek seeks to positionMs inside the current track.
func (c *PlayerServiceClient) Seek(ctx context.Context, positionMs int64) (*PlayerState, error) {
	return unary(ctx, c.seek, &SeekRequest{PositionMs: positionMs}, c.token)
}

// Next moves to the next track.
func (c *PlayerServiceClient) Next(ctx context.Context) (*PlayerState, error) {
	return unary(ctx, c.next, &Empty{}, c.token)
}

// Previous moves to the previous track.
func (c *PlayerServiceClient) Previous(ctx context.Context) (*PlayerState, error) {
	return unary(ctx, c.previous, &Empty{}, c.token)
}

// Enqueue appends refs to the queue.
func (c *PlayerServiceClient) Enqueue(ctx context.Context, refs []string) (*PlayerState, error) {
	return unary(ctx, c.enqueue, &EnqueueRequest{Refs: refs}, c.token)
}

// JumpToEntry plays the first track of entry.
func (c *PlayerServiceClient) JumpToEntry(ctx context.Context, entry int) (*PlayerState, error) {
	return unary(ctx, c.jumpToEntry, &JumpRequest{Entry: entry}, c.token)
}

// JumpToSubItem plays track sub of entry.
func (c *PlayerServiceClient) JumpToSubItem(ctx context.Context, entry, sub int) (*PlayerState, error) {
	return unary(ctx, c.jumpToSubItem, &JumpRequest{Entry: entry, Sub: sub}, c.token)
}

// ToggleRepeat cycles the repeat mode and returns the new one.
func (c *PlayerServiceClient) ToggleRepeat(ctx context.Context) (string, error) {
	resp, err := unary(ctx, c.toggleRepeat, &Empty{}, c.token)
	if err != nil {
		return "", err
	}
	return resp.Repeat, nil
}

// GetState returns the current state.
func (c *PlayerServiceClient) GetState(ctx context.Context) (*PlayerState, error) {
	return unary(ctx, c.getState, &Empty{}, c.token)
}

// WatchState opens a state stream. The caller must close it.
func (c *PlayerServiceClient) WatchState(ctx context.Context) (*connect.ServerStreamForClient[PlayerState], error) {
	return c.watchState.CallServerStream(ctx, newRequest(&Empty{}, c.token))
}
