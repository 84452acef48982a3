package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a group of HTTP endpoints that mounts itself on a router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
