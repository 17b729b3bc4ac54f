//go:build !regtest

package apiserver

import "net/http"

// regtestMethods is empty in production builds: snapshot/revert/mine/
// set_next_block_timestamp/increase_time do not exist outside regtest.
var regtestMethods = map[string]methodFunc{}

func (s *Server) registerRegtestRoutes(mux *http.ServeMux) {}
