package action

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const servicePackage = "serveractions"

// Registry holds every entry point and serves them as one gRPC service per domain.
type Registry struct {
	byName   map[string]*EntryPoint
	byMethod map[string]*EntryPoint
	order    []*EntryPoint
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]*EntryPoint),
		byMethod: make(map[string]*EntryPoint),
	}
}

// Add registers entry points. It fails on a duplicate name and registers none of eps in that case.
func (r *Registry) Add(eps ...*EntryPoint) error {
	seen := make(map[string]bool, len(eps))
	for _, e := range eps {
		if e == nil {
			return fmt.Errorf("action: nil entry point")
		}
		if _, dup := r.byName[e.Name()]; dup || seen[e.Name()] {
			return fmt.Errorf("action: entry point %s registered twice", e.Name())
		}
		seen[e.Name()] = true
	}
	for _, e := range eps {
		r.byName[e.Name()] = e
		r.byMethod[e.FullMethod()] = e
		r.order = append(r.order, e)
	}
	return nil
}

// MustAdd is Add that panics on error; for startup wiring.
func (r *Registry) MustAdd(eps ...*EntryPoint) {
	if err := r.Add(eps...); err != nil {
		panic(err)
	}
}

// Lookup returns the entry point registered under name (e.g. "post.create").
func (r *Registry) Lookup(name string) (*EntryPoint, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// LookupMethod returns the entry point served on the given gRPC full method.
func (r *Registry) LookupMethod(fullMethod string) (*EntryPoint, bool) {
	e, ok := r.byMethod[fullMethod]
	return e, ok
}

// EntryPoints returns all entry points sorted by name.
func (r *Registry) EntryPoints() []*EntryPoint {
	out := make([]*EntryPoint, len(r.order))
	copy(out, r.order)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// PublicMethods returns the full method names of public entry points, for the auth interceptor.
func (r *Registry) PublicMethods() map[string]bool {
	out := make(map[string]bool)
	for _, e := range r.order {
		if e.public {
			out[e.FullMethod()] = true
		}
	}
	return out
}

// Invoke runs the entry point registered under name in-process, without a transport.
func (r *Registry) Invoke(ctx context.Context, name string, input *structpb.Struct) (*structpb.Struct, error) {
	e, ok := r.byName[name]
	if !ok {
		return nil, Unimplemented(name)
	}
	return e.Invoke(ctx, input)
}

// handlerType is the interface the registry satisfies as a gRPC service implementation.
type handlerType interface {
	LookupMethod(fullMethod string) (*EntryPoint, bool)
}

// ServiceDescs builds one grpc.ServiceDesc per domain. Request and response messages are
// google.protobuf.Struct, so no generated code is involved.
func (r *Registry) ServiceDescs() []grpc.ServiceDesc {
	byDomain := make(map[string][]*EntryPoint)
	var domains []string
	for _, e := range r.order {
		if _, ok := byDomain[e.domain]; !ok {
			domains = append(domains, e.domain)
		}
		byDomain[e.domain] = append(byDomain[e.domain], e)
	}
	sort.Strings(domains)

	descs := make([]grpc.ServiceDesc, 0, len(domains))
	for _, d := range domains {
		desc := grpc.ServiceDesc{
			ServiceName: ServiceName(d),
			HandlerType: (*handlerType)(nil),
			Streams:     []grpc.StreamDesc{},
			Metadata:    servicePackage + "/" + d,
		}
		for _, e := range byDomain[d] {
			desc.Methods = append(desc.Methods, grpc.MethodDesc{
				MethodName: exported(e.verb),
				Handler:    methodHandler(e),
			})
		}
		descs = append(descs, desc)
	}
	return descs
}

// Register registers every domain service on s.
func (r *Registry) Register(s grpc.ServiceRegistrar) {
	descs := r.ServiceDescs()
	for i := range descs {
		s.RegisterService(&descs[i], r)
	}
}

func methodHandler(e *EntryPoint) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return e.Invoke(ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: e.FullMethod(),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return e.Invoke(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
