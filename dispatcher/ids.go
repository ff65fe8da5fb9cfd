/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package dispatcher

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// idGenerator mints the two request-tracing identifiers spec.md §4.8's
// response envelope requires on every response: a 16-character uppercase
// hex x-amz-request-id and a longer base64-like x-amz-id-2. A single
// snowflake.Node backs both so they stay cheap (no syscall, no uuid
// generation) even under heavy request volume; snowflake IDs are
// monotonic and collision-free per-node, which request-id generation only
// needs incidentally (it is a trace token, not a security token).
type idGenerator struct {
	mu   sync.Mutex
	node *snowflake.Node
}

func newIDGenerator() (*idGenerator, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("creating snowflake node: %w", err)
	}
	return &idGenerator{node: node}, nil
}

// RequestID returns a 16-character uppercase hex string, the shape AWS uses
// for x-amz-request-id.
func (g *idGenerator) RequestID() string {
	g.mu.Lock()
	id := g.node.Generate()
	g.mu.Unlock()
	return strings.ToUpper(fmt.Sprintf("%016X", uint64(id.Int64())))
}

// HostID returns a longer base64-like token, the shape AWS uses for
// x-amz-id-2 (an opaque string identifying the host/shard that served the
// request).
func (g *idGenerator) HostID() string {
	g.mu.Lock()
	id := g.node.Generate()
	g.mu.Unlock()
	raw := id.Bytes()
	return base64.StdEncoding.EncodeToString(append(raw, raw...))
}
