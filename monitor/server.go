// Copyright (c) 2020-2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package monitor

import (
	"context"
	"encoding/json"
	"net"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/openthread/ot-tsch/logger"
	"github.com/openthread/ot-tsch/simulation"
)

type Server struct {
	ctrl    simulation.Controller
	server  *grpc.Server
	address string
}

// NewServer creates a monitor server for ctrl that will listen on address.
func NewServer(ctrl simulation.Controller, address string) *Server {
	ms := &Server{
		ctrl:    ctrl,
		server:  grpc.NewServer(grpc.ReadBufferSize(1024*8), grpc.WriteBufferSize(1024*64)),
		address: address,
	}
	RegisterMonitorServer(ms.server, ms)
	return ms
}

func (ms *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	now, nodes := ms.ctrl.Status()
	list := make([]interface{}, 0, len(nodes))
	for _, st := range nodes {
		m, err := toMap(st)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		list = append(list, m)
	}
	res, err := structpb.NewStruct(map[string]interface{}{
		"time_us": float64(now),
		"nodes":   list,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return res, nil
}

func (ms *Server) Command(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	output, err := ms.ctrl.Command(ctx, req.GetValue())
	if err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}
	return wrapperspb.String(output), nil
}

// Run listens on the server address and serves until ctx is done.
func (ms *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", ms.address)
	if err != nil {
		return errors.Wrapf(err, "monitor listen on %s", ms.address)
	}
	logger.Infof("gRPC monitor serving on %s ...", lis.Addr())
	return ms.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (ms *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		ms.server.Stop()
	}()
	err := ms.server.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) || ctx.Err() != nil {
		return nil
	}
	return err
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	err = json.Unmarshal(data, &m)
	return m, err
}
