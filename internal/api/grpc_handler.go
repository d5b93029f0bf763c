package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
	"storefront-service/internal/pkg/logger"
)

// StorefrontServiceName is the fully qualified gRPC service name.
const StorefrontServiceName = "storefront.v1.Storefront"

// StorefrontServer is the gRPC surface of the storefront. Requests and
// responses are google.protobuf.Struct values carrying the same JSON shapes as
// the HTTP API.
type StorefrontServer interface {
	GetCart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddToCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetQuantity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveFromCart(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearCart(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// GRPCHandler implements StorefrontServer and reports catalog readiness through
// the standard health service.
type GRPCHandler struct {
	catalog  CatalogReader
	ledger   CartLedger
	validate *validator.Validate
	health   *health.Server
	log      *logger.Logger
}

// NewGRPCHandler creates a new GRPCHandler. The health server starts out
// NOT_SERVING until SetCatalogStatus reports a ready catalog.
func NewGRPCHandler(cr CatalogReader, cl CartLedger, hs *health.Server, log *logger.Logger) *GRPCHandler {
	h := &GRPCHandler{
		catalog:  cr,
		ledger:   cl,
		validate: domain.NewValidator(),
		health:   hs,
		log:      log.With("component", "grpc"),
	}
	h.SetCatalogStatus(catalog.StatusLoading)
	return h
}

// SetCatalogStatus maps the catalog lifecycle onto the health service.
func (s *GRPCHandler) SetCatalogStatus(st catalog.Status) {
	if s.health == nil {
		return
	}
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if st == catalog.StatusReady {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", serving)
	s.health.SetServingStatus(StorefrontServiceName, serving)
}

// --- Helpers ---

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "Failed to encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "Failed to encode response: %v", err)
	}
	return out, nil
}

// decodeRequest copies a Struct request into dst and validates it.
func (s *GRPCHandler) decodeRequest(req *structpb.Struct, dst interface{}) error {
	raw, err := protojson.Marshal(req)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "Invalid request payload: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "Invalid request payload: %v", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "Validation failed: %v", err)
	}
	return nil
}

func (s *GRPCHandler) cartResponse() (*structpb.Struct, error) {
	return toStruct(newCartResponse(s.ledger.View()))
}

func mapIntentErrorToGrpcStatus(err error) error {
	var unavailable *catalogUnavailableError
	switch {
	case errors.Is(err, errCatalogLoading):
		return status.Error(codes.Unavailable, "Catalog is still loading")
	case errors.As(err, &unavailable):
		return status.Errorf(codes.Unavailable, "Catalog unavailable: %s", unavailable.reason)
	case errors.Is(err, errProductNotFound):
		return status.Error(codes.NotFound, "Product not found")
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrMissingID):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Errorf(codes.Internal, "Failed to process request: %v", err)
	}
}

// --- Request payloads ---

type listProductsInput struct {
	Query    string `json:"query"`
	Category string `json:"category"`
	Reset    bool   `json:"reset"`
}

type cartItemInput struct {
	ProductID domain.ProductID `json:"product_id" validate:"required"`
}

type setQuantityInput struct {
	ProductID domain.ProductID `json:"product_id" validate:"required"`
	CartSetQuantityInput
}

// --- Storefront gRPC Methods Implementation ---

func (s *GRPCHandler) GetCart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.cartResponse()
}

func (s *GRPCHandler) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input listProductsInput
	if err := s.decodeRequest(req, &input); err != nil {
		return nil, err
	}
	criteria := criteriaFrom(input.Query, input.Category, input.Reset)
	return toStruct(newProductListResponse(s.catalog.Snapshot(), criteria))
}

func (s *GRPCHandler) AddToCart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input CartAddInput
	if err := s.decodeRequest(req, &input); err != nil {
		return nil, err
	}
	if err := addToCart(ctx, s.catalog, s.ledger, input); err != nil {
		s.log.Warn("add to cart rejected", "product_id", input.ProductID, "error", err)
		return nil, mapIntentErrorToGrpcStatus(err)
	}
	return s.cartResponse()
}

func (s *GRPCHandler) SetQuantity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input setQuantityInput
	if err := s.decodeRequest(req, &input); err != nil {
		return nil, err
	}
	s.ledger.SetQuantity(ctx, input.ProductID, *input.Quantity)
	return s.cartResponse()
}

func (s *GRPCHandler) RemoveFromCart(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var input cartItemInput
	if err := s.decodeRequest(req, &input); err != nil {
		return nil, err
	}
	s.ledger.Remove(ctx, input.ProductID)
	return s.cartResponse()
}

func (s *GRPCHandler) ClearCart(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.ledger.Clear(ctx)
	return s.cartResponse()
}

// --- Service registration ---

// RegisterStorefrontServer registers srv on a gRPC server.
func RegisterStorefrontServer(r grpc.ServiceRegistrar, srv StorefrontServer) {
	r.RegisterService(&storefrontServiceDesc, srv)
}

// unaryMethod has the shape of grpc.MethodDesc.Handler.
type unaryMethod = func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error)

func unaryHandler[Req any](method string, newReq func() Req, call func(StorefrontServer, context.Context, Req) (*structpb.Struct, error)) unaryMethod {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + StorefrontServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StorefrontServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newEmpty() *emptypb.Empty   { return &emptypb.Empty{} }
func newStruct() *structpb.Struct { return &structpb.Struct{} }

var storefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: StorefrontServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCart", Handler: unaryHandler("GetCart", newEmpty, StorefrontServer.GetCart)},
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", newStruct, StorefrontServer.ListProducts)},
		{MethodName: "AddToCart", Handler: unaryHandler("AddToCart", newStruct, StorefrontServer.AddToCart)},
		{MethodName: "SetQuantity", Handler: unaryHandler("SetQuantity", newStruct, StorefrontServer.SetQuantity)},
		{MethodName: "RemoveFromCart", Handler: unaryHandler("RemoveFromCart", newStruct, StorefrontServer.RemoveFromCart)},
		{MethodName: "ClearCart", Handler: unaryHandler("ClearCart", newEmpty, StorefrontServer.ClearCart)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.proto",
}
