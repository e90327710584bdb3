package rpc

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/funvibe/glitteral/internal/builtins"
)

// Client calls builtins on a remote Server.
type Client struct {
	conn  *grpc.ClientConn
	owned bool
	d     *Descriptors
}

// Dial connects to target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewClient wraps an existing connection. Close leaves conn open.
func NewClient(conn *grpc.ClientConn) (*Client, error) {
	d, err := LoadDescriptors()
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, d: d}, nil
}

func (c *Client) Close() error {
	if !c.owned || c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Request is one remote call.
type Request struct {
	Name     string
	Args     []builtins.Value
	Stdin    string
	Overflow string // empty keeps the server's policy
}

// Response mirrors CallResponse. Err carries a builtin failure; transport
// failures are returned separately by Call.
type Response struct {
	CallID string
	Value  builtins.Value
	Args   []builtins.Value
	Output string
	Err    *builtins.Error
}

func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	in := dynamic.NewMessage(c.d.Call.GetInputType())
	if err := in.TrySetFieldByName("name", req.Name); err != nil {
		return nil, err
	}
	if err := in.TrySetFieldByName("stdin", req.Stdin); err != nil {
		return nil, err
	}
	if err := in.TrySetFieldByName("overflow", req.Overflow); err != nil {
		return nil, err
	}
	args, err := valuesToMessages(c.d.Value, req.Args)
	if err != nil {
		return nil, err
	}
	if err := addMessages(in, "args", args); err != nil {
		return nil, err
	}

	out := dynamic.NewMessage(c.d.Call.GetOutputType())
	if err := c.conn.Invoke(ctx, methodPath(c.d.Call), in, out); err != nil {
		return nil, fmt.Errorf("RPC failed: %w", err)
	}

	resp := &Response{}
	resp.CallID, _ = out.GetFieldByName("call_id").(string)
	resp.Output, _ = out.GetFieldByName("output").(string)
	if resp.Args, err = repeatedValues(out, "args"); err != nil {
		return nil, err
	}

	if kindName, _ := out.GetFieldByName("error_kind").(string); kindName != "" {
		kind, _ := builtins.ParseKind(kindName)
		msg, _ := out.GetFieldByName("error").(string)
		resp.Err = &builtins.Error{Kind: kind, Message: msg}
		return resp, nil
	}

	if rv, ok := out.GetFieldByName("result").(*dynamic.Message); ok {
		if resp.Value, err = messageToValue(rv); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Info describes one remote builtin.
type Info struct {
	Name      string
	Family    string
	Arity     int
	Signature string
}

func (c *Client) List(ctx context.Context) ([]Info, error) {
	in := dynamic.NewMessage(c.d.List.GetInputType())
	out := dynamic.NewMessage(c.d.List.GetOutputType())
	if err := c.conn.Invoke(ctx, methodPath(c.d.List), in, out); err != nil {
		return nil, fmt.Errorf("RPC failed: %w", err)
	}

	raw, _ := out.GetFieldByName("builtins").([]interface{})
	infos := make([]Info, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(*dynamic.Message)
		if !ok {
			return nil, fmt.Errorf("unexpected builtin entry %T", r)
		}
		var info Info
		info.Name, _ = m.GetFieldByName("name").(string)
		info.Family, _ = m.GetFieldByName("family").(string)
		arity, _ := m.GetFieldByName("arity").(int32)
		info.Arity = int(arity)
		info.Signature, _ = m.GetFieldByName("signature").(string)
		infos = append(infos, info)
	}
	return infos, nil
}
