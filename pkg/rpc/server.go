package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dr0pdb/icecaneidb/internal/common"
	"github.com/dr0pdb/icecaneidb/pkg/coordinator"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// remoteTransaction is the coordinator side handle of a txn driven over grpc.
// Run only signals the waiting clients.
type remoteTransaction struct {
	id      uint64
	once    sync.Once
	running chan struct{}
}

func (r *remoteTransaction) ID() uint64 {
	return r.id
}

func (r *remoteTransaction) Run() {
	r.once.Do(func() {
		close(r.running)
	})
}

// Server exposes a coordinator to remote clients.
// Txn ids are assigned by the server and never reused.
type Server struct {
	coordinator *coordinator.Coordinator

	mu     sync.Mutex
	lastID uint64
	txns   map[uint64]*remoteTransaction
}

var _ CoordinatorServer = (*Server)(nil)

// NewServer creates a new coordinator server.
func NewServer(c *coordinator.Coordinator) *Server {
	return &Server{
		coordinator: c,
		txns:        make(map[uint64]*remoteTransaction),
	}
}

// CreateTransaction registers a new txn and returns its id.
func (s *Server) CreateTransaction(ctx context.Context, req *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	s.mu.Lock()
	s.lastID++
	txn := &remoteTransaction{
		id:      s.lastID,
		running: make(chan struct{}),
	}
	s.txns[txn.id] = txn
	s.mu.Unlock()

	if err := s.coordinator.CreateTransaction(txn); err != nil {
		s.forget(txn.id)
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(txn.id), nil
}

// StartTransaction moves the txn to the ready queue.
func (s *Server) StartTransaction(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	if err := s.coordinator.StartTransaction(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// FinishTransaction removes the txn.
func (s *Server) FinishTransaction(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	if err := s.coordinator.FinishTransaction(req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	s.forget(req.GetValue())
	return &emptypb.Empty{}, nil
}

// WaitRunning blocks until the txn was run by the coordinator or the ctx is done.
func (s *Server) WaitRunning(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	s.mu.Lock()
	txn, found := s.txns[req.GetValue()]
	s.mu.Unlock()

	if !found {
		return nil, toStatus(common.NewUnknownTransactionError(req.GetValue()))
	}

	select {
	case <-txn.running:
		return &emptypb.Empty{}, nil
	case <-ctx.Done():
		return nil, toStatus(ctx.Err())
	}
}

// TransactionState returns the lifecycle state of the txn.
func (s *Server) TransactionState(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.StringValue, error) {
	state, err := s.coordinator.State(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(state.String()), nil
}

// Stats returns the coordinator counts.
func (s *Server) Stats(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	st := s.coordinator.Stats()
	resp, err := structpb.NewStruct(map[string]interface{}{
		"name":      s.coordinator.Name(),
		"tracked":   st.Tracked,
		"started":   st.Started,
		"running":   st.Running,
		"runningId": st.RunningID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return resp, nil
}

func (s *Server) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.txns, id)
}

// NewGRPCServer creates a grpc server with the coordinator service registered.
func NewGRPCServer(c *coordinator.Coordinator) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    5 * time.Minute,
			Timeout: 20 * time.Second,
		}),
		grpc.UnaryInterceptor(loggingInterceptor),
	)
	RegisterCoordinatorServer(grpcServer, NewServer(c))
	return grpcServer
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := log.WithFields(log.Fields{
		"method":   info.FullMethod,
		"request":  fmt.Sprint(req),
		"duration": time.Since(start),
	})
	if err != nil {
		entry.WithField("err", err).Error("rpc::server::loggingInterceptor; call failed")
	} else {
		entry.Debug("rpc::server::loggingInterceptor; call done")
	}
	return resp, err
}
