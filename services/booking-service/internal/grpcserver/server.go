// Package grpcserver exposes the availability engine to other services over
// gRPC. Messages are google.protobuf.Struct so no generated stubs are needed.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/errs"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/bookslot/services/booking-service/internal/timenorm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "bookslot.availability.v1.AvailabilityService"

const (
	methodCheck = "/" + ServiceName + "/CheckAvailability"
	methodSlots = "/" + ServiceName + "/FindAvailableSlots"
)

type AvailabilityServer interface {
	CheckAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindAvailableSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unary(methodCheck, AvailabilityServer.CheckAvailability)},
		{MethodName: "FindAvailableSlots", Handler: unary(methodSlots, AvailabilityServer.FindAvailableSlots)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookslot/availability/v1/availability.proto",
}

func unary(fullMethod string, call func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type server struct {
	eval   *availability.Evaluator
	slots  *availability.Enumerator
	logger *slog.Logger
}

func Register(grpcServer *grpc.Server, eval *availability.Evaluator, slots *availability.Enumerator, logger *slog.Logger) {
	grpcServer.RegisterService(&ServiceDesc, &server{eval: eval, slots: slots, logger: logger})
}

// CheckAvailability answers ok=false with the failing clause instead of an
// error status when the candidate conflicts.
func (s *server) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	businessID := field(req, "business_id")
	mode, err := parseMode(field(req, "mode"))
	if err != nil {
		return nil, s.toStatus(err)
	}
	if field(req, "start") == "" {
		return nil, s.toStatus(errs.Validation("start", "required"))
	}
	loc, err := s.eval.Zone(ctx, businessID, field(req, "tz"))
	if err != nil {
		return nil, s.toStatus(err)
	}
	start, err := timenorm.Instant(field(req, "start"), loc)
	if err != nil {
		return nil, s.toStatus(err)
	}

	err = s.eval.Check(ctx, mode, availability.Candidate{
		BusinessID:       businessID,
		ServiceID:        field(req, "service_id"),
		StaffID:          field(req, "staff_id"),
		ResourceTypeID:   field(req, "resource_type_id"),
		ResourceQuantity: number(req, "resource_quantity"),
		Start:            start,
		DurationMinutes:  number(req, "duration_minutes"),
	}, field(req, "exclude_booking_id"))

	resp := map[string]any{"ok": err == nil, "start": timenorm.Format(start)}
	var conflict *errs.ConflictError
	switch {
	case err == nil:
	case errors.As(err, &conflict):
		resp["clause"] = string(conflict.Clause)
		resp["detail"] = conflict.Detail
	default:
		return nil, s.toStatus(err)
	}
	return structpb.NewStruct(resp)
}

func (s *server) FindAvailableSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	businessID := field(req, "business_id")
	mode, err := parseMode(field(req, "mode"))
	if err != nil {
		return nil, s.toStatus(err)
	}
	loc, err := s.eval.Zone(ctx, businessID, field(req, "tz"))
	if err != nil {
		return nil, s.toStatus(err)
	}
	var rangeStart, rangeEnd time.Time
	for _, r := range []struct {
		name string
		dst  *time.Time
	}{{"range_start", &rangeStart}, {"range_end", &rangeEnd}} {
		raw := field(req, r.name)
		if raw == "" {
			return nil, s.toStatus(errs.Validation(r.name, "required"))
		}
		if *r.dst, err = timenorm.Instant(raw, loc); err != nil {
			return nil, s.toStatus(err)
		}
	}
	interval := number(req, "interval_minutes")
	if interval == 0 {
		interval = 30
	}

	res, err := s.slots.Enumerate(ctx, availability.Query{
		BusinessID:       businessID,
		ServiceID:        field(req, "service_id"),
		Mode:             mode,
		RangeStart:       rangeStart,
		RangeEnd:         rangeEnd,
		IntervalMinutes:  interval,
		StaffID:          field(req, "staff_id"),
		ResourceTypeID:   field(req, "resource_type_id"),
		ResourceQuantity: number(req, "resource_quantity"),
	})
	if err != nil {
		return nil, s.toStatus(err)
	}

	slots := make([]any, 0, len(res.Starts))
	for _, st := range res.Starts {
		slots = append(slots, map[string]any{
			"start": timenorm.Format(st),
			"end":   timenorm.Format(st.Add(res.Duration)),
		})
	}
	return structpb.NewStruct(map[string]any{
		"mode":             string(res.Mode),
		"duration_minutes": int(res.Duration / time.Minute),
		"timezone":         res.Location.String(),
		"slots":            slots,
	})
}

func (s *server) toStatus(err error) error {
	switch {
	case errs.IsValidation(err), errs.IsNormalization(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errs.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errs.IsConflict(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errs.IsTransient(err):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("availability rpc failed", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func field(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func number(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}

func parseMode(raw string) (model.BookingMode, error) {
	if raw == "" {
		return "", nil
	}
	mode, ok := model.ParseBookingMode(raw)
	if !ok {
		return "", errs.Validation("mode", "unknown booking mode "+raw)
	}
	return mode, nil
}
