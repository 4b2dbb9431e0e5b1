package rpc

import (
	"context"

	"github.com/dr0pdb/icecaneidb/pkg/coordinator"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a typed client of the coordinator service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client over an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to the coordinator service at the address.
// The caller closes the returned connection.
func Dial(ctx context.Context, address string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.DialContext(ctx, address, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// CreateTransaction registers a new txn and returns its id.
func (c *Client) CreateTransaction(ctx context.Context) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, fullMethod("CreateTransaction"), &emptypb.Empty{}, out); err != nil {
		return 0, fromStatus(err)
	}
	return out.GetValue(), nil
}

// StartTransaction moves the txn to the ready queue.
func (c *Client) StartTransaction(ctx context.Context, id uint64) error {
	return c.invokeID(ctx, "StartTransaction", id)
}

// FinishTransaction removes the txn.
func (c *Client) FinishTransaction(ctx context.Context, id uint64) error {
	return c.invokeID(ctx, "FinishTransaction", id)
}

// WaitRunning blocks until the txn holds the running slot or the ctx is done.
func (c *Client) WaitRunning(ctx context.Context, id uint64) error {
	return c.invokeID(ctx, "WaitRunning", id)
}

// TransactionState returns the lifecycle state of the txn.
func (c *Client) TransactionState(ctx context.Context, id uint64) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, fullMethod("TransactionState"), wrapperspb.UInt64(id), out); err != nil {
		return "", fromStatus(err)
	}
	return out.GetValue(), nil
}

// Stats returns the coordinator counts.
func (c *Client) Stats(ctx context.Context) (coordinator.Stats, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Stats"), &emptypb.Empty{}, out); err != nil {
		return coordinator.Stats{}, fromStatus(err)
	}

	fields := out.GetFields()
	return coordinator.Stats{
		Tracked:   int(fields["tracked"].GetNumberValue()),
		Started:   int(fields["started"].GetNumberValue()),
		Running:   int(fields["running"].GetNumberValue()),
		RunningID: uint64(fields["runningId"].GetNumberValue()),
	}, nil
}

// Run creates a txn, waits for the running slot, calls fn and finishes the txn.
// The txn is finished even if fn or the wait fails.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	id, err := c.CreateTransaction(ctx)
	if err != nil {
		return err
	}
	defer c.FinishTransaction(context.Background(), id)

	if err := c.StartTransaction(ctx, id); err != nil {
		return err
	}
	if err := c.WaitRunning(ctx, id); err != nil {
		return err
	}
	return fn(ctx)
}

func (c *Client) invokeID(ctx context.Context, method string, id uint64) error {
	if err := c.cc.Invoke(ctx, fullMethod(method), wrapperspb.UInt64(id), &emptypb.Empty{}); err != nil {
		return fromStatus(err)
	}
	return nil
}
