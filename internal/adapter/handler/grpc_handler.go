package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/core/service"
)

const (
	TransitionsServiceName = "kanban.v1.Transitions"

	applyTransitionMethod = "/" + TransitionsServiceName + "/ApplyTransition"
	appliedRuleMethod     = "/" + TransitionsServiceName + "/AppliedRule"
)

// TransitionsServer is the gRPC surface of the transition dispatcher. Messages
// are google.protobuf.Struct with camelCase keys matching the HTTP API.
type TransitionsServer interface {
	ApplyTransition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AppliedRule(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var TransitionsServiceDesc = grpc.ServiceDesc{
	ServiceName: TransitionsServiceName,
	HandlerType: (*TransitionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ApplyTransition", Handler: applyTransitionHandler},
		{MethodName: "AppliedRule", Handler: appliedRuleHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kanban/v1/transitions.proto",
}

func RegisterTransitionsServer(s grpc.ServiceRegistrar, srv TransitionsServer) {
	s.RegisterService(&TransitionsServiceDesc, srv)
}

func applyTransitionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransitionsServer).ApplyTransition(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: applyTransitionMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransitionsServer).ApplyTransition(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func appliedRuleHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransitionsServer).AppliedRule(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: appliedRuleMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransitionsServer).AppliedRule(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TransitionsClient calls a TransitionsServer over a client connection.
type TransitionsClient struct {
	cc grpc.ClientConnInterface
}

func NewTransitionsClient(cc grpc.ClientConnInterface) *TransitionsClient {
	return &TransitionsClient{cc: cc}
}

func (c *TransitionsClient) ApplyTransition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, applyTransitionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TransitionsClient) AppliedRule(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, appliedRuleMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCHandler struct {
	transitions *service.TransitionService
	boards      *service.BoardService
	logger      *zap.Logger
}

func NewGRPCHandler(transitions *service.TransitionService, boards *service.BoardService, log *zap.Logger) *GRPCHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCHandler{transitions: transitions, boards: boards, logger: log}
}

// ApplyTransition expects itemId and column, optionally locationId, notes,
// actor and requestId. Denied moves are reported in the body with
// success=false, like duplicates.
func (h *GRPCHandler) ApplyTransition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	treq := service.TransitionRequest{
		ItemID:    fields["itemId"].GetStringValue(),
		Column:    fields["column"].GetStringValue(),
		Notes:     fields["notes"].GetStringValue(),
		Actor:     fields["actor"].GetStringValue(),
		RequestID: fields["requestId"].GetStringValue(),
	}
	if loc := fields["locationId"].GetStringValue(); loc != "" {
		treq.LocationID = &loc
	}
	if treq.ItemID == "" || treq.Column == "" {
		return nil, status.Error(codes.InvalidArgument, "itemId and column are required")
	}

	result, err := h.transitions.Apply(ctx, treq)
	if err != nil {
		return h.failure(err)
	}

	return structpb.NewStruct(map[string]any{
		"success":      true,
		"outcome":      string(result.Outcome),
		"itemId":       result.Item.ID,
		"boardId":      result.Item.BoardID,
		"column":       result.Item.Column,
		"originItemId": result.OriginItemID,
		"logId":        result.LogID,
		"warning":      result.Warning,
	})
}

// AppliedRule expects itemId and returns the threshold rule that currently
// applies to the item, or a null rule.
func (h *GRPCHandler) AppliedRule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemID := req.GetFields()["itemId"].GetStringValue()
	if itemID == "" {
		return nil, status.Error(codes.InvalidArgument, "itemId is required")
	}

	alert, err := h.boards.ItemAlert(ctx, itemID)
	if err != nil {
		return h.failure(err)
	}

	var rule any
	if alert.Rule != nil {
		rule = map[string]any{
			"id":       alert.Rule.ID,
			"operator": string(alert.Rule.Operator),
			"value":    alert.Rule.Value,
			"unit":     string(alert.Rule.Unit),
			"priority": alert.Rule.Priority,
			"color":    alert.Rule.Color,
		}
	}
	return structpb.NewStruct(map[string]any{
		"success": true,
		"itemId":  alert.Item.ID,
		"column":  alert.Item.Column,
		"rule":    rule,
	})
}

func (h *GRPCHandler) failure(err error) (*structpb.Struct, error) {
	code, reason := classifyError(err)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, status.Error(codes.NotFound, err.Error())
	case code >= 500:
		h.logger.Error("grpc request failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return structpb.NewStruct(map[string]any{
		"success": false,
		"message": err.Error(),
		"reason":  reason,
	})
}
