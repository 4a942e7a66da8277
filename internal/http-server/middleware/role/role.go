package role

import (
	"net/http"
	"gatepass/lib/api/cont"
	"gatepass/lib/api/response"

	"github.com/go-chi/render"
)

// RequireIssuer admits issuers and admins; everyone else gets 403.
func RequireIssuer(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		if !user.CanIssue() {
			forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

// RequireAdmin admits admins only.
func RequireAdmin(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		if !user.IsAdmin() {
			forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func forbidden(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, response.Error("Access denied"))
}
