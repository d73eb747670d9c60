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

	"github.com/cloudwego/hertz/pkg/app"
)

// Hertz 中间件：为每个请求建立 Exchange，处理完成后把录制条目写回响应头
func Hertz() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		headers := make(map[string]string)
		c.Request.Header.VisitAll(func(key, value []byte) {
			headers[string(key)] = string(value)
		})
		ex := NewExchange(headers)

		c.Next(WithExchange(ctx, ex))

		for _, h := range ex.ResponseHeaders() {
			c.Response.Header.Set(h.Name, h.Value)
		}
	}
}
