// Copyright (c) 2019 Hashweave
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package api

import (
	"github.com/buaazp/fasthttprouter"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"

	"github.com/hashweave-network/hashweave"
	"github.com/hashweave-network/hashweave/common"
	"github.com/hashweave-network/hashweave/log"
)

type Options struct {
	ListenAddr string
}

type server struct {
	node *hashweave.Node
}

// Run serves the node's read-only status surface. Blocks.
func Run(node *hashweave.Node, opts Options) error {
	s := &server{node: node}

	router := fasthttprouter.New()
	router.GET("/node/status", s.status)
	router.GET("/node/quorum", s.quorum)
	router.GET("/node/drops", s.drops)

	logger := log.API()
	logger.Info().Str("addr", opts.ListenAddr).Msg("Serving the node status API.")

	return fasthttp.ListenAndServe(opts.ListenAddr, router.Handler)
}

func respond(ctx *fasthttp.RequestCtx, value *fastjson.Value) {
	ctx.SetContentType("application/json")
	ctx.SetBody(value.MarshalTo(nil))
}

func (s *server) status(ctx *fasthttp.RequestCtx) {
	arena := new(fastjson.Arena)

	o := arena.NewObject()
	o.Set("id", arena.NewNumberInt(int(s.node.ID())))
	o.Set("round", arena.NewNumberFloat64(float64(s.node.Quorum().Round())))
	o.Set("quorum_threshold", arena.NewNumberInt(int(s.node.Quorum().Threshold())))
	o.Set("user_trans_events", arena.NewNumberInt(s.node.Tracker().NumUserTransEvents()))
	o.Set("last_round_all_cons", arena.NewNumberFloat64(float64(s.node.Tracker().LastRoundReceivedAllTransCons())))

	respond(ctx, o)
}

func (s *server) quorum(ctx *fasthttp.RequestCtx) {
	arena := new(fastjson.Arena)

	members := arena.NewArray()
	count := 0

	for i := 0; i < s.node.AddressBook().Size(); i++ {
		id := common.NodeID(i)
		if s.node.Quorum().IsInCriticalQuorum(id) {
			members.SetArrayItem(count, arena.NewNumberInt(i))
			count++
		}
	}

	o := arena.NewObject()
	o.Set("round", arena.NewNumberFloat64(float64(s.node.Quorum().Round())))
	o.Set("threshold", arena.NewNumberInt(int(s.node.Quorum().Threshold())))
	o.Set("members", members)

	respond(ctx, o)
}

func (s *server) drops(ctx *fasthttp.RequestCtx) {
	arena := new(fastjson.Arena)

	o := arena.NewObject()
	for kind, count := range s.node.Metrics().DroppedByKind() {
		o.Set(kind, arena.NewNumberFloat64(float64(count)))
	}

	respond(ctx, o)
}
