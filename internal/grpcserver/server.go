// Package grpcserver exposes the release calendar over gRPC. Messages are
// plain Go structs carried by a JSON codec, so the service is described by
// a hand-written grpc.ServiceDesc.
package grpcserver

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"releasehub/internal/calendar"
	"releasehub/internal/dates"
	"releasehub/internal/logging"
	"releasehub/pkg/models"
)

const ServiceName = "releasehub.v1.Calendar"

// CalendarServer is the service contract.
type CalendarServer interface {
	ReleasesFor(context.Context, *MonthRequest) (*MonthResponse, error)
	ReleasesOn(context.Context, *DayRequest) (*DayResponse, error)
	GetTitle(context.Context, *TitleRequest) (*TitleResponse, error)
	ParseDate(context.Context, *ParseRequest) (*ParseResponse, error)
}

type TitleGetter interface {
	Get(ctx context.Context, appID int64) (*models.Title, error)
}

type Server struct {
	Agg       *calendar.Aggregator
	Titles    TitleGetter
	Favorites calendar.FavoriteSets
}

func NewServer(agg *calendar.Aggregator, titles TitleGetter, favs calendar.FavoriteSets) *Server {
	return &Server{Agg: agg, Titles: titles, Favorites: favs}
}

func (s *Server) query(ctx context.Context, req *MonthRequest) calendar.Query {
	q := calendar.Query{Year: req.Year, Month: time.Month(req.Month), Excluded: req.Exclude}
	if req.UserID != "" && s.Favorites != nil {
		set, err := s.Favorites.Set(ctx, req.UserID)
		if err != nil {
			logging.Warn().Err(err).Str("user", req.UserID).Msg("load favorites for calendar")
		} else {
			q.Favorites = set
		}
	}
	return q
}

func calendarError(err error) error {
	if errors.Is(err, calendar.ErrInvalidDate) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, "calendar failed")
}

func (s *Server) ReleasesFor(ctx context.Context, req *MonthRequest) (*MonthResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	m, err := s.Agg.ReleasesFor(ctx, s.query(ctx, req))
	if err != nil {
		return nil, calendarError(err)
	}

	resp := &MonthResponse{Year: m.Year, Month: int(m.Month), NoDate: m.Unparsed, Days: make([]DayBucket, 0, len(m.Days))}
	for _, d := range m.SortedDays() {
		resp.Days = append(resp.Days, DayBucket{Date: d, Titles: m.Days[d]})
	}
	return resp, nil
}

func (s *Server) ReleasesOn(ctx context.Context, req *DayRequest) (*DayResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	q := s.query(ctx, &req.MonthRequest)
	items, err := s.Agg.ReleasesOn(ctx, q, req.Day)
	if err != nil {
		return nil, calendarError(err)
	}
	return &DayResponse{Date: dates.New(q.Year, q.Month, req.Day), Items: items}, nil
}

func (s *Server) GetTitle(ctx context.Context, req *TitleRequest) (*TitleResponse, error) {
	if req == nil || req.AppID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "appid required")
	}
	t, err := s.Titles.Get(ctx, req.AppID)
	if err != nil {
		return nil, status.Error(codes.Internal, "get failed")
	}
	if t == nil {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &TitleResponse{Title: *t}, nil
}

func (s *Server) ParseDate(_ context.Context, req *ParseRequest) (*ParseResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request required")
	}
	r := dates.Normalize(req.Text)
	resp := &ParseResponse{OK: r.OK(), Precision: r.Precision.String(), Strategy: r.Strategy}
	if r.OK() {
		resp.Date = r.Date.String()
	}
	return resp, nil
}

func unary[Req any](call func(CalendarServer, context.Context, *Req) (any, error), method string) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CalendarServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(CalendarServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes CalendarServer to grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(func(s CalendarServer, ctx context.Context, r *MonthRequest) (any, error) { return s.ReleasesFor(ctx, r) }, "ReleasesFor"),
		unary(func(s CalendarServer, ctx context.Context, r *DayRequest) (any, error) { return s.ReleasesOn(ctx, r) }, "ReleasesOn"),
		unary(func(s CalendarServer, ctx context.Context, r *TitleRequest) (any, error) { return s.GetTitle(ctx, r) }, "GetTitle"),
		unary(func(s CalendarServer, ctx context.Context, r *ParseRequest) (any, error) { return s.ParseDate(ctx, r) }, "ParseDate"),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "releasehub/calendar",
}

// LogUnary logs every call with its status code and latency.
func LogUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	log := logging.Component("grpc")
	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("elapsed", time.Since(start)).
		Msg("rpc")
	return resp, err
}

// New builds a grpc.Server with the calendar and health services registered.
func New(svc CalendarServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LogUnary)}, opts...)
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}
