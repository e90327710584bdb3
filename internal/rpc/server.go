package rpc

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/funvibe/glitteral/internal/builtins"
	"github.com/funvibe/glitteral/internal/config"
	"github.com/funvibe/glitteral/internal/journal"
)

// Recorder receives every call the server executes.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// ServerOptions configure a Server.
type ServerOptions struct {
	// Overflow is the policy for requests that do not choose one.
	Overflow builtins.OverflowPolicy
	Recorder Recorder
	// MaxRangeLen bounds the lists range may build for one request; 0 means
	// config.DefaultMaxRangeLen.
	MaxRangeLen int64
	// Logf receives one line per request; nil means log.Printf.
	Logf func(format string, args ...interface{})
}

// Server hosts the builtin table. Each request runs against its own Env, so
// concurrent requests never share streams.
type Server struct {
	d       *Descriptors
	grpc    *grpc.Server
	opts    ServerOptions
	session string
}

func NewServer(opts ServerOptions) (*Server, error) {
	d, err := LoadDescriptors()
	if err != nil {
		return nil, err
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	if opts.MaxRangeLen == 0 {
		opts.MaxRangeLen = config.DefaultMaxRangeLen
	}
	s := &Server{d: d, opts: opts, session: uuid.NewString()}
	s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logRequests, s.recoverPanics))

	sd := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*interface{})(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: d.Call.GetName(), Handler: s.unary(d.Call, s.handleCall)},
			{MethodName: d.List.GetName(), Handler: s.unary(d.List, s.handleList)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: d.File.GetName(),
	}
	s.grpc.RegisterService(sd, s)
	return s, nil
}

// Session identifies this server's journal entries.
func (s *Server) Session() string { return s.session }

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.opts.Logf("glitteral: serving %s on %s", ServiceName, lis.Addr())
	return s.grpc.Serve(lis)
}

// ListenAndServe listens on the TCP address addr and serves.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Stop waits for in-flight requests and stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

type handlerFunc func(ctx context.Context, in *dynamic.Message) (*dynamic.Message, error)

func (s *Server) unary(md *desc.MethodDescriptor, h handlerFunc) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := methodPath(md)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := dynamic.NewMessage(md.GetInputType())
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return h(ctx, req.(*dynamic.Message))
		})
	}
}

func (s *Server) logRequests(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	started := time.Now()
	resp, err := handler(ctx, req)
	detail := ""
	if info.FullMethod == methodPath(s.d.Call) {
		if in, ok := req.(*dynamic.Message); ok && in != nil {
			name, _ := in.GetFieldByName("name").(string)
			detail = " " + name
		}
		if msg, ok := resp.(*dynamic.Message); ok && msg != nil && err == nil {
			if kind, _ := msg.GetFieldByName("error_kind").(string); kind != "" {
				detail += " -> " + kind
			}
		}
	}
	if err != nil {
		detail += fmt.Sprintf(" error=%v", err)
	}
	s.opts.Logf("%s%s (%s)", info.FullMethod, detail, time.Since(started))
	return resp, err
}

// recoverPanics turns a panicking handler into an Internal status so one bad
// request cannot take the server down.
func (s *Server) recoverPanics(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.Logf("%s panic: %v", info.FullMethod, r)
			resp, err = nil, status.Errorf(codes.Internal, "internal error: %v", r)
		}
	}()
	return handler(ctx, req)
}

func (s *Server) handleCall(ctx context.Context, in *dynamic.Message) (*dynamic.Message, error) {
	name, _ := in.GetFieldByName("name").(string)
	stdin, _ := in.GetFieldByName("stdin").(string)
	overflowName, _ := in.GetFieldByName("overflow").(string)

	args, err := repeatedValues(in, "args")
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	var out bytes.Buffer
	env := builtins.NewEnv(strings.NewReader(stdin), &out)
	env.Overflow = s.opts.Overflow
	env.MaxRangeLen = s.opts.MaxRangeLen
	if overflowName != "" {
		if env.Overflow, err = builtins.ParseOverflowPolicy(overflowName); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "%v", err)
		}
	}

	started := time.Now()
	result, callErr := builtins.Call(ctx, env, name, args...)
	elapsed := time.Since(started)

	callID := uuid.NewString()
	if s.opts.Recorder != nil {
		e := journal.NewEntry(s.session, name, args, result, callErr, started, elapsed)
		e.ID = callID
		if err := s.opts.Recorder.Record(ctx, e); err != nil {
			s.opts.Logf("journal: %v", err)
		}
	}

	resp := dynamic.NewMessage(s.d.Call.GetOutputType())
	if err := resp.TrySetFieldByName("call_id", callID); err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	if err := resp.TrySetFieldByName("output", out.String()); err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	echoed, err := valuesToMessages(s.d.Value, args)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	if err := addMessages(resp, "args", echoed); err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}

	if callErr != nil {
		if err := resp.TrySetFieldByName("error_kind", builtins.KindOf(callErr).String()); err != nil {
			return nil, status.Errorf(codes.Internal, "%v", err)
		}
		if err := resp.TrySetFieldByName("error", callErr.Error()); err != nil {
			return nil, status.Errorf(codes.Internal, "%v", err)
		}
		return resp, nil
	}

	rv, err := valueToMessage(s.d.Value, result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	if err := resp.TrySetFieldByName("result", rv); err != nil {
		return nil, status.Errorf(codes.Internal, "%v", err)
	}
	return resp, nil
}

func (s *Server) handleList(_ context.Context, _ *dynamic.Message) (*dynamic.Message, error) {
	resp := dynamic.NewMessage(s.d.List.GetOutputType())
	for _, name := range builtins.Names() {
		b := builtins.Builtins[name]
		info := dynamic.NewMessage(s.d.Info)
		for field, v := range map[string]interface{}{
			"name":      b.Name,
			"family":    b.Family,
			"arity":     int32(b.Arity),
			"signature": b.Signature,
		} {
			if err := info.TrySetFieldByName(field, v); err != nil {
				return nil, status.Errorf(codes.Internal, "%v", err)
			}
		}
		if err := resp.TryAddRepeatedFieldByName("builtins", info); err != nil {
			return nil, status.Errorf(codes.Internal, "%v", err)
		}
	}
	return resp, nil
}
