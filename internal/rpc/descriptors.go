// Package rpc exposes the builtin table over gRPC so an evaluator running in
// another process can dispatch builtin calls remotely. The service is
// described by builtins.proto, compiled at startup; no generated code is
// involved and messages travel as dynamic messages.
package rpc

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"
)

//go:embed builtins.proto
var protoSource string

const (
	protoFileName = "glitteral/v1/builtins.proto"
	ServiceName   = "glitteral.v1.Builtins"
)

// Descriptors holds the compiled service description.
type Descriptors struct {
	File    *desc.FileDescriptor
	Service *desc.ServiceDescriptor
	Call    *desc.MethodDescriptor
	List    *desc.MethodDescriptor
	Value   *desc.MessageDescriptor
	Info    *desc.MessageDescriptor
}

var (
	descriptors     *Descriptors
	descriptorsErr  error
	descriptorsOnce sync.Once
)

// LoadDescriptors compiles builtins.proto once per process.
func LoadDescriptors() (*Descriptors, error) {
	descriptorsOnce.Do(func() {
		descriptors, descriptorsErr = compile()
	})
	return descriptors, descriptorsErr
}

func compile() (*Descriptors, error) {
	parser := protoparse.Parser{
		Accessor: protoparse.FileContentsFromMap(map[string]string{
			protoFileName: protoSource,
		}),
	}
	fds, err := parser.ParseFiles(protoFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proto: %w", err)
	}
	fd := fds[0]

	sd := fd.FindService(ServiceName)
	if sd == nil {
		return nil, fmt.Errorf("service %s not found in %s", ServiceName, protoFileName)
	}
	d := &Descriptors{
		File:    fd,
		Service: sd,
		Call:    sd.FindMethodByName("Call"),
		List:    sd.FindMethodByName("List"),
		Value:   fd.FindMessage("glitteral.v1.Value"),
		Info:    fd.FindMessage("glitteral.v1.BuiltinInfo"),
	}
	if d.Call == nil || d.List == nil || d.Value == nil || d.Info == nil {
		return nil, fmt.Errorf("%s is missing a method or message", protoFileName)
	}
	return d, nil
}

// methodPath builds the "/package.Service/Method" form grpc expects.
func methodPath(md *desc.MethodDescriptor) string {
	return "/" + md.GetService().GetFullyQualifiedName() + "/" + md.GetName()
}

// DescriptorSet returns the service description in the form protoc's
// --descriptor_set_out produces, for clients that generate their own stubs.
func (d *Descriptors) DescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{d.File.AsFileDescriptorProto()},
	}
}
