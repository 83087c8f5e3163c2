package contracts

import "github.com/julienschmidt/httprouter"

// Handler is a domain's HTTP surface. The application mounts every handler
// on one router behind the shared middleware stack.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
