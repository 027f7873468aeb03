package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the calendar service with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) ReleasesFor(ctx context.Context, in *MonthRequest, opts ...grpc.CallOption) (*MonthResponse, error) {
	out := new(MonthResponse)
	if err := c.invoke(ctx, "ReleasesFor", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ReleasesOn(ctx context.Context, in *DayRequest, opts ...grpc.CallOption) (*DayResponse, error) {
	out := new(DayResponse)
	if err := c.invoke(ctx, "ReleasesOn", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTitle(ctx context.Context, in *TitleRequest, opts ...grpc.CallOption) (*TitleResponse, error) {
	out := new(TitleResponse)
	if err := c.invoke(ctx, "GetTitle", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ParseDate(ctx context.Context, in *ParseRequest, opts ...grpc.CallOption) (*ParseResponse, error) {
	out := new(ParseResponse)
	if err := c.invoke(ctx, "ParseDate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
