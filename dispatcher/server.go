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

// Package dispatcher wires the HTTP routing table of spec.md §4.8 onto the
// signer, streaming, objectcore, and multipart engines using gin-gonic,
// following the RouterList/auth-middleware shape of nabbar-golib/router:
// a single gin.Engine, a registration step per route, and a shared
// authentication middleware that stores the resolved caller on the gin
// context for downstream handlers to authorize against.
package dispatcher

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/nabbar/s3gw/logger"
	"github.com/nabbar/s3gw/multipart"
	"github.com/nabbar/s3gw/objectcore"
	"github.com/nabbar/s3gw/signer"
	"github.com/nabbar/s3gw/storage"
)

// Server bundles the engines and cross-cutting concerns (auth, id
// generation, logging) the routing table's handlers need.
type Server struct {
	backend   storage.Backend
	objects   objectcore.Engine
	multipart multipart.Engine
	validator signer.Validator

	ids *idGenerator
	log logger.Logger

	authDisabled bool

	engine *gin.Engine
}

// Options configures a new Server.
type Options struct {
	Backend      storage.Backend
	Validator    signer.Validator
	Logger       logger.Logger
	AuthDisabled bool
}

// New builds a Server and registers spec.md §4.8's full routing table onto
// a fresh gin.Engine.
func New(opts Options) (*Server, error) {
	ids, err := newIDGenerator()
	if err != nil {
		return nil, fmt.Errorf("building dispatcher: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		backend:      opts.Backend,
		objects:      objectcore.New(opts.Backend),
		multipart:    multipart.New(opts.Backend),
		validator:    opts.Validator,
		ids:          ids,
		log:          log,
		authDisabled: opts.AuthDisabled,
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.envelopeMiddleware())
	s.registerRoutes()

	return s, nil
}

// Engine returns the underlying gin.Engine, e.g. for http.Server.Handler or
// for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes lays out spec.md §4.8's routing table. Bucket-type routes
// (":bucket") and object-type routes (":bucket/*key") each run the auth
// middleware, then a handler that further disambiguates on query
// parameters (?uploads, ?partNumber&uploadId, ?uploadId alone) the way the
// spec's table does per HTTP method.
func (s *Server) registerRoutes() {
	auth := s.authMiddleware()

	s.engine.GET("/", auth, s.handleListBuckets)

	bucket := s.engine.Group("/:bucket", auth)
	{
		bucket.PUT("", s.handleCreateBucket)
		bucket.DELETE("", s.handleDeleteBucket)
		bucket.HEAD("", s.handleHeadBucket)
		bucket.GET("", s.handleBucketGet)
	}

	key := s.engine.Group("/:bucket/*key", auth)
	{
		key.POST("", s.handleKeyPost)
		key.PUT("", s.handleKeyPut)
		key.GET("", s.handleKeyGet)
		key.HEAD("", s.handleKeyHead)
		key.DELETE("", s.handleKeyDelete)
	}
}
