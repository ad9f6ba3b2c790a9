package server

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AccessLogEntry struct {
	RequestID   string        `json:"request_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Route       string        `json:"route"`
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	StatusCode  int           `json:"status_code"`
	ActorUserID int64         `json:"actor_user_id,omitempty"`
	DonationID  string        `json:"donation_id,omitempty"`
	Bytes       int           `json:"bytes"`
	Duration    time.Duration `json:"duration"`
}

func (e AccessLogEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("request_id", e.RequestID)
	enc.AddTime("timestamp", e.Timestamp)
	enc.AddString("route", e.Route)
	enc.AddString("method", e.Method)
	enc.AddString("path", e.Path)
	enc.AddInt("status_code", e.StatusCode)
	if e.ActorUserID != 0 {
		enc.AddInt64("actor_user_id", e.ActorUserID)
	}
	if e.DonationID != "" {
		enc.AddString("donation_id", e.DonationID)
	}
	enc.AddInt("bytes", e.Bytes)
	enc.AddDuration("duration", e.Duration)
	return nil
}

var _ zapcore.ObjectMarshaler = AccessLogEntry{}

func (e AccessLogEntry) field() zap.Field {
	return zap.Object("request", e)
}

// accessInfo is filled by inner middleware while the request is served.
type accessInfo struct {
	actorUserID atomic.Int64
}

type accessInfoKey struct{}

func withAccessInfo(ctx context.Context) (context.Context, *accessInfo) {
	info := &accessInfo{}
	return context.WithValue(ctx, accessInfoKey{}, info), info
}

func recordActor(ctx context.Context, userID int64) {
	if info, ok := ctx.Value(accessInfoKey{}).(*accessInfo); ok {
		info.actorUserID.Store(userID)
	}
}
