package jointstore

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the joint store debug pages on mux: a live SQL
// console and a JSON dump of the current joint values.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", s.path), s.db, &tailsql.DBOptions{
		Label: "Joint store",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("joints", "Current joint values", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		values, err := s.All(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read joints: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(values); err != nil {
			log.Printf("failed to encode joints: %v", err)
		}
	}))
}
