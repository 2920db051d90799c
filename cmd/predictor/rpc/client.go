package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls gridcast.v1.Predictor over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Predict requests a prediction for season and race.
func (c *Client) Predict(ctx context.Context, season int, race string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"season": season, "race": race})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Predict", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Drivers requests the roster of season.
func (c *Client) Drivers(ctx context.Context, season int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"season": season})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Drivers", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
