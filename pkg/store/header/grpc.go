// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package header

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryServerInterceptor reads sessions from incoming metadata and returns
// recorded entries as response header metadata.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		headers := make(map[string]string)
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			for key, values := range md {
				if len(values) > 0 {
					headers[key] = values[0]
				}
			}
		}
		ex := NewExchange(headers)

		resp, err := handler(WithExchange(ctx, ex), req)

		if recorded := ex.ResponseHeaders(); len(recorded) > 0 {
			md := metadata.MD{}
			for _, h := range recorded {
				md.Set(h.Name, h.Value)
			}
			if herr := grpc.SetHeader(ctx, md); herr != nil && err == nil {
				return resp, herr
			}
		}
		return resp, err
	}
}
